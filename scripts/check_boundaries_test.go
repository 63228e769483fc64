package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.go")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestDomainMayNotImportAdaptersOrOtherContexts(t *testing.T) {
	path := writeSource(t, `package entities

import (
	"time"

	"adreel/contexts/billing/payment-ledger/adapters/memory"
	"adreel/contexts/ads-accounts/link-service/domain/entities"
)
`)
	prefix := "adreel/contexts/billing/payment-ledger"
	violations := validateFile("adreel", path, "contexts/billing/payment-ledger/domain/entities/x.go", "domain", prefix)

	rules := map[string]int{}
	for _, v := range violations {
		rules[v.Rule]++
	}
	if rules["domain must not import adapters"] != 1 {
		t.Fatalf("expected adapter violation, got %+v", violations)
	}
	if rules["cross-module imports are forbidden"] != 1 {
		t.Fatalf("expected cross-module violation, got %+v", violations)
	}
}

func TestApplicationMayImportContractsAndOwnPorts(t *testing.T) {
	path := writeSource(t, `package application

import (
	"context"

	"adreel/contexts/billing/payment-ledger/ports"
	contractsv1 "adreel/contracts/gen/events/v1"
)
`)
	prefix := "adreel/contexts/billing/payment-ledger"
	violations := validateFile("adreel", path, "contexts/billing/payment-ledger/application/service.go", "application", prefix)
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}

func TestPortsMayNotImportThirdParty(t *testing.T) {
	path := writeSource(t, `package ports

import "github.com/stripe/stripe-go/v82"
`)
	prefix := "adreel/contexts/billing/payment-ledger"
	violations := validateFile("adreel", path, "contexts/billing/payment-ledger/ports/ports.go", "ports", prefix)
	if len(violations) != 1 || violations[0].Rule != "ports import is outside explicit allowlist" {
		t.Fatalf("unexpected violations: %+v", violations)
	}
}

func TestReadModulePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	if err := os.WriteFile(path, []byte("module adreel\n\ngo 1.24\n"), 0o600); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	module, err := readModulePath(path)
	if err != nil || module != "adreel" {
		t.Fatalf("expected adreel, got %q err=%v", module, err)
	}
}
