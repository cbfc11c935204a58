// Package devsync keeps a multi-device messaging client convergent: it
// provides the protocol task system that sends, receives and reflects
// end-to-end messages, the protocol state store backing those tasks,
// and the background job scheduler for periodic maintenance.
//
// The Manager is the composition root. Applications plug in their model
// layer and blob server boundary and drive tasks through a codec handle
// bound to the active server connection:
//
//	mgr, err := devsync.New(devsync.Options{
//		Model: repo,
//		Blob:  blobs,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	t := task.NewOutgoingMessageTask(mgr.Services(), receiver, envelope)
//	err = mgr.RunTask(ctx, handle, t)
package devsync
