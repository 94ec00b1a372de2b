/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

func loadAlerts(t *testing.T) []alertGroup {
	t.Helper()

	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
	}

	var config struct {
		Groups []alertGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}
	if len(config.Groups) == 0 {
		t.Fatal("alerts.yml 'groups' is empty")
	}
	return config.Groups
}

// TestCriticalAlertsPresent verifies the feeder's key alerts are defined.
func TestCriticalAlertsPresent(t *testing.T) {
	names := map[string]bool{}
	for _, group := range loadAlerts(t) {
		for _, rule := range group.Rules {
			names[rule.Alert] = true
		}
	}

	for _, want := range []string{
		"FeederMotorFaulted",
		"FeederClockUnsynced",
		"FeederScheduleStale",
		"FeederMotorBacklog",
	} {
		if !names[want] {
			t.Errorf("alert %q not found in alerts.yml", want)
		}
	}
}

// TestAlertLabels verifies alerts have required labels.
func TestAlertLabels(t *testing.T) {
	for _, group := range loadAlerts(t) {
		for _, alert := range group.Rules {
			if alert.Alert == "" {
				continue
			}
			if _, ok := alert.Labels["severity"]; !ok {
				t.Errorf("Alert '%s' missing 'severity' label", alert.Alert)
			}
			if _, ok := alert.Annotations["summary"]; !ok {
				t.Errorf("Alert '%s' missing 'summary' annotation", alert.Alert)
			}
		}
	}
}

// TestAlertMetricsExist verifies every metric an alert references is declared in metrics.go.
func TestAlertMetricsExist(t *testing.T) {
	data, err := os.ReadFile("metrics.go")
	if err != nil {
		t.Fatalf("Failed to read metrics.go: %v", err)
	}
	content := string(data)

	metricRef := regexp.MustCompile(namespace + `_([a-z_]+)`)
	for _, group := range loadAlerts(t) {
		for _, alert := range group.Rules {
			for _, match := range metricRef.FindAllStringSubmatch(alert.Expr, -1) {
				if !strings.Contains(content, `"`+match[1]+`"`) {
					t.Errorf("alert %s references undeclared metric %s", alert.Alert, match[0])
				}
			}
		}
	}
}
