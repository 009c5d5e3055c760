// Package lifecycle manages cache generations for an offline worker.
//
// A worker is identified by an opaque version string. Install precaches a
// fixed asset list into the generation named by that version; if any asset
// cannot be fetched the install fails as a whole and the worker becomes
// redundant. Activate deletes every other generation and takes control of
// clients so the new interception rules apply without a reload.
//
// State is the explicit worker state shared with the interception engine and
// the control plane:
//
//	state := lifecycle.NewState("agriassist-v1.0.0")
//	mgr, err := lifecycle.NewManager(lifecycle.Config{
//	    State:   state,
//	    Store:   store,
//	    Fetcher: fetcher,
//	})
//	if err := mgr.Install(ctx, precache); err != nil {
//	    return err
//	}
//	if state.SkipWaitingRequested() {
//	    err = mgr.Activate(ctx)
//	}
package lifecycle
