// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session decides whether the current user is a guest or a member.
//
// The decision is a pure read of the persisted credential. It is made again
// on every call and never cached, so logging in or out (in this process or in
// another one sharing the same storage) takes effect on the next operation.
//
// # Key Types
//
//   - Classifier: reads the credential and reports the Mode
//   - Claims: unverified view of a bearer token, for display only
//   - Watcher: reports mode flips caused by other processes
//
// # Usage
//
//	c := session.NewClassifier(store, logger)
//	if c.IsMember() {
//	    // talk to the backend
//	}
package session
