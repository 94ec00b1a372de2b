/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleserver

import "embed"

//go:embed templates/*.html
var templateFS embed.FS
