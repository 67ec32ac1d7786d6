// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation routes chat operations between the guest store on
// this device and the member rooms on the backend.
//
// # Key Types
//
//   - Store: common interface of LocalStore and RemoteStore
//   - Repository: picks a Store per call from the current session mode
//   - Reconciler: turns a send result into the displayed message pair
//   - Thread: the active conversation as the UI sees it
//   - Controller: the chat screen's actions over all of the above
//
// # Routing
//
// The session is reclassified before every operation, so a login or logout
// in another process takes effect on the next call. Conversations whose
// origin is local always go to the local store, even for members; that is
// where a member lands when the server refuses to create a room.
//
// # Usage
//
//	repo := conversation.NewRepository(classifier, local, remote, logger)
//	ctl := conversation.NewController(repo)
//	if err := ctl.Load(ctx); err != nil {
//	    return err
//	}
//	pair, err := ctl.Send(ctx, "안녕하세요")
package conversation
