//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
//
// End-to-end engine scenarios driven through fake pipe-backed backends.

package monitor_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/control"
	"github.com/momentics/mountmon/fake"
	"github.com/momentics/mountmon/monitor"
)

func newFake(t *testing.T) *fake.Backend {
	t.Helper()
	b, err := fake.NewBackend()
	if err != nil {
		t.Fatalf("fake backend: %v", err)
	}
	return b
}

func trigger(t *testing.T, b *fake.Backend) {
	t.Helper()
	if err := b.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
}

func TestWaitZeroTimeoutNeverBlocks(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	changed, err := mn.Wait(0)
	if err != nil {
		t.Fatalf("Wait(0): %v", err)
	}
	if changed {
		t.Error("Wait(0) reported a change without readiness")
	}
}

func TestAcceptedChangeReportedOnce(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/run/mount/utab", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	trigger(t, b)
	changed, err := mn.Wait(-1)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !changed {
		t.Fatal("Wait missed the readiness signal")
	}

	ch, ok, err := mn.NextChange()
	if err != nil {
		t.Fatalf("NextChange: %v", err)
	}
	if !ok {
		t.Fatal("NextChange found no pending change after Wait")
	}
	if ch.Path != "/run/mount/utab" || ch.Type != api.TypeUserspace {
		t.Errorf("NextChange = %+v, want utab userspace change", ch)
	}

	if _, ok, err := mn.NextChange(); err != nil || ok {
		t.Errorf("second NextChange = (%v, %v), want drained", ok, err)
	}
}

func TestRejectionDoesNotStopTheLoop(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	// Entry A always rejects, entry B accepts; both become ready within
	// one wait call. Wait must skip past A and report B.
	a := newFake(t)
	a.Verdicts = []monitor.Verdict{monitor.Reject, monitor.Reject, monitor.Reject}
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", a); err != nil {
		t.Fatalf("enable a: %v", err)
	}
	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeMountinfo, -1, "/tmp/b", b); err != nil {
		t.Fatalf("enable b: %v", err)
	}

	trigger(t, a)
	trigger(t, b)

	changed, err := mn.Wait(-1)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !changed {
		t.Fatal("Wait timed out although B accepted")
	}

	ch, ok, err := mn.NextChange()
	if err != nil || !ok {
		t.Fatalf("NextChange = (%v, %v, %v)", ch, ok, err)
	}
	if ch.Path != "/tmp/b" {
		t.Errorf("change reported for %s, want /tmp/b", ch.Path)
	}
	if _, ok, err := mn.NextChange(); err != nil || ok {
		t.Errorf("rejected entry surfaced in the drain cycle")
	}
}

func TestWaitTimeoutIsAHardDeadline(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	// An entry that keeps becoming ready but rejects every event. The
	// caller-visible timeout must cover the whole reject-and-retry loop,
	// not restart with each rejection.
	b := newFake(t)
	b.Verdicts = make([]monitor.Verdict, 1000)
	for i := range b.Verdicts {
		b.Verdicts[i] = monitor.Reject
	}
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				_ = b.Trigger()
			}
		}
	}()

	start := time.Now()
	changed, err := mn.Wait(150)
	elapsed := time.Since(start)
	close(stop)
	wg.Wait()

	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if changed {
		t.Fatal("Wait reported a change although every event was rejected")
	}
	if elapsed < 140*time.Millisecond {
		t.Errorf("Wait gave up after %v, before the 150ms budget elapsed", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("rejections stretched a 150ms wait to %v", elapsed)
	}
}

func TestDrainReportsDistinctEntries(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	a := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", a); err != nil {
		t.Fatalf("enable a: %v", err)
	}
	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeMountinfo, -1, "/tmp/b", b); err != nil {
		t.Fatalf("enable b: %v", err)
	}

	trigger(t, a)
	trigger(t, b)

	changed, err := mn.Wait(-1)
	if err != nil || !changed {
		t.Fatalf("Wait = (%v, %v)", changed, err)
	}

	seen := map[string]int{}
	for {
		ch, ok, err := mn.NextChange()
		if err != nil {
			t.Fatalf("NextChange: %v", err)
		}
		if !ok {
			break
		}
		seen[ch.Path]++
	}
	if len(seen) != 2 {
		t.Fatalf("drained %d distinct entries, want 2 (%v)", len(seen), seen)
	}
	for path, n := range seen {
		if n != 1 {
			t.Errorf("entry %s reported %d times in one drain cycle", path, n)
		}
	}
}

func TestEventCleanupDrainsEverything(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	trigger(t, b)
	if changed, err := mn.Wait(-1); err != nil || !changed {
		t.Fatalf("Wait = (%v, %v)", changed, err)
	}
	if err := mn.EventCleanup(); err != nil {
		t.Fatalf("EventCleanup: %v", err)
	}
	if _, ok, err := mn.NextChange(); err != nil || ok {
		t.Errorf("NextChange after EventCleanup = (%v, %v), want drained", ok, err)
	}
}

func TestSecondaryRecords(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	records := []api.Record{
		{MountID: 41, Attached: true},
		{MountID: 42, Detached: true},
	}
	rb, err := fake.NewRecordBackend(records)
	if err != nil {
		t.Fatalf("record backend: %v", err)
	}
	if _, err := fake.Enable(mn, api.TypeFanotify, -1, "/proc/self/ns/mnt", rb); err != nil {
		t.Fatalf("enable: %v", err)
	}

	trigger(t, &rb.Backend)
	if changed, err := mn.Wait(-1); err != nil || !changed {
		t.Fatalf("Wait = (%v, %v)", changed, err)
	}
	if _, ok, err := mn.NextChange(); err != nil || !ok {
		t.Fatalf("NextChange = (%v, %v)", ok, err)
	}

	var got []api.Record
	for {
		var rec api.Record
		more, err := mn.NextRecord(&rec)
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		if !more {
			break
		}
		got = append(got, rec)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestSecondaryRecordsUnsupported(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	trigger(t, b)
	if changed, err := mn.Wait(-1); err != nil || !changed {
		t.Fatalf("Wait = (%v, %v)", changed, err)
	}
	if _, ok, err := mn.NextChange(); err != nil || !ok {
		t.Fatalf("NextChange = (%v, %v)", ok, err)
	}

	var rec api.Record
	if _, err := mn.NextRecord(&rec); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("NextRecord on plain backend = %v, want ErrNotSupported", err)
	}
}

func TestReenableIsIdempotent(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	b := newFake(t)
	e, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := mn.Fd(); err != nil {
		t.Fatalf("Fd: %v", err)
	}

	// Enabling an already enabled and registered entry succeeds.
	if err := mn.SetEnabled(e, true); err != nil {
		t.Errorf("re-enable: %v", err)
	}
	// So does disabling twice.
	if err := mn.SetEnabled(e, false); err != nil {
		t.Errorf("disable: %v", err)
	}
	if err := mn.SetEnabled(e, false); err != nil {
		t.Errorf("second disable: %v", err)
	}
}

func TestMetricsCounters(t *testing.T) {
	mn := monitor.New()
	defer mn.Unref()

	mr := control.NewMetricsRegistry()
	mn.SetMetrics(mr)

	b := newFake(t)
	if _, err := fake.Enable(mn, api.TypeUserspace, -1, "/tmp/a", b); err != nil {
		t.Fatalf("enable: %v", err)
	}

	trigger(t, b)
	if changed, err := mn.Wait(-1); err != nil || !changed {
		t.Fatalf("Wait = (%v, %v)", changed, err)
	}
	if err := mn.EventCleanup(); err != nil {
		t.Fatalf("EventCleanup: %v", err)
	}

	if mr.Get("wait.calls") != 1 || mr.Get("wait.changes") != 1 {
		t.Errorf("wait counters = %+v", mr.Snapshot())
	}
	if mr.Get("loop.accepts") != 1 {
		t.Errorf("accept counter = %d, want 1", mr.Get("loop.accepts"))
	}
}
