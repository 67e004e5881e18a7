// Package launcher builds the command line that boots a unikernel image and
// runs it as a child process.
//
// Each process is started in its own process group so that stopping it also
// reaches the hypervisor processes the launcher spawns. Callers drive the
// lifecycle explicitly:
//
//	p, err := l.Launch(ctx, launcher.Build(tc, base))
//	out, err := p.Wait(tc.Timeout())
//	if errors.Is(err, launcher.ErrTimedOut) {
//		// probe the guest, then
//		p.Terminate()
//		out, err = p.Drain(grace)
//	}
package launcher
