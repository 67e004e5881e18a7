// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Description files are embedded using go:embed:
//
//	fixtures/caddy.json               caddy on qemu with TCP and HTTP checks, helloworld on fc
//	fixtures/nginx.yaml               two nginx cases, list and "pub:int" port forms
//	fixtures/redis.toml               a [[test_case]] table on xen
//	fixtures/invalid_missing_plat.json
//
// Helper functions parse them into test cases:
//
//	cases, err := testutil.CaddyCases()
//	data, err := testutil.LoadFixture("nginx.yaml")
//
// # Test Environment
//
// NewTestEnv installs an app.Default backed by temp directories, a scripted
// launcher and a FakeProber, so commands run without kraft or a network:
//
//	func TestRun(t *testing.T) {
//	    env := testutil.NewTestEnv(t)
//	    file := env.WriteFixture("caddy.json")
//	    env.AddProcess(&launcher.MockProcess{Running: true})
//	    env.Prober.Listen(2105).Serve(2105, 200, "Hello, World!")
//	    ...
//	}
package testutil
