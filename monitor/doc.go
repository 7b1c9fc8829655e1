// Package monitor
// Author: momentics <momentics@gmail.com>
//
// Change-monitoring engine multiplexing several independent notification
// sources behind one wait/next-change API.
//
// A caller enables one or more backends (see backend/), then blocks in Wait
// and drains the accepted changes with NextChange:
//
//	mn := monitor.New()
//	defer mn.Unref()
//	_ = mountinfo.Enable(mn, true)
//
//	for {
//		changed, err := mn.Wait(-1)
//		if err != nil || !changed {
//			break
//		}
//		for {
//			ch, ok, err := mn.NextChange()
//			if err != nil || !ok {
//				break
//			}
//			fmt.Printf("%s: change detected\n", ch.Path)
//		}
//	}
//
// A Monitor is single-threaded: all operations on one instance must be
// serialized by the caller. Wait is the only blocking operation.
package monitor
