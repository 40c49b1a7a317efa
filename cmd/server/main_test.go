package main

import (
	"testing"

	"agrokoperasi/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected short auth secret to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigRejectsWeakBootstrapPassword(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:             strongSecret,
		BootstrapAdminUsername: "root@agrokoperasi.my",
		BootstrapAdminPassword: "123",
	})
	if err == nil {
		t.Fatalf("expected weak bootstrap password to be rejected")
	}
}

func TestValidateSecurityConfigRequiresBootstrapForPostgres(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:  strongSecret,
		DatabaseURL: "postgres://localhost/agro",
	})
	if err == nil {
		t.Fatalf("expected postgres without bootstrap admin to be rejected")
	}

	err = validateSecurityConfig(config.Config{
		AuthSecret:             strongSecret,
		DatabaseURL:            "postgres://localhost/agro",
		BootstrapAdminUsername: "root@agrokoperasi.my",
		BootstrapAdminPassword: "correct-horse",
	})
	if err != nil {
		t.Fatalf("expected bootstrap config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigRejectsPlaceholderSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "changeme-changeme-changeme-changeme"})
	if err == nil {
		t.Fatalf("expected placeholder secret to be rejected")
	}
}
