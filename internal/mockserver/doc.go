// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockserver is an in-memory stand-in for the Neulbom backend.
//
// It serves the same REST contract as the real service so the client can be
// exercised end to end without a database or a language model:
//
//   - POST   /api/auth/signup, /api/auth/login
//   - GET    /api/users/me, PUT /api/users/me
//   - GET    /api/chat/rooms, POST /api/chat/rooms
//   - PUT    /api/chat/rooms/{id}, DELETE /api/chat/rooms/{id}
//   - POST   /api/chat/message[?room_id=]
//   - GET    /api/welfare/search, /api/welfare/{id}
//   - GET    /api/welfare/recommend/popular, /api/welfare/recommend/recent
//   - POST   /api/welfare/{id}/bookmark
//   - GET    /api/community/posts, POST /api/community/posts
//   - GET    /api/community/posts/{id}, PUT and DELETE for the author
//   - POST   /api/community/posts/{id}/like, /api/community/posts/{id}/bookmark
//   - GET    /api/community/posts/{id}/comments, POST to add one
//   - GET    /health
//
// The welfare catalog is a fixed seed of five programmes. Replies are canned. Crisis detection is keyword based, the same list the
// production safety guard starts from.
//
// # Usage
//
//	srv := mockserver.New("dev-secret").WithUser("demo@neulbom.kr", "demo1234")
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//
// Failure injection for tests:
//
//	srv.SetFailCreate(true) // POST /api/chat/rooms answers 500
package mockserver
