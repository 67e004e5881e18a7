package testutil

import (
	"embed"

	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadCasesFixture parses a description fixture, choosing the format from
// its extension.
func LoadCasesFixture(name string) ([]*testcase.TestCase, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return loader.Parse(data, loader.FormatFromPath(name))
}

// CaddyCases returns the JSON fixture: a serving caddy guest and a
// run-to-completion helloworld guest.
func CaddyCases() ([]*testcase.TestCase, error) {
	return LoadCasesFixture("caddy.json")
}

// NginxCases returns the YAML fixture.
func NginxCases() ([]*testcase.TestCase, error) {
	return LoadCasesFixture("nginx.yaml")
}

// RedisCases returns the TOML fixture.
func RedisCases() ([]*testcase.TestCase, error) {
	return LoadCasesFixture("redis.toml")
}
