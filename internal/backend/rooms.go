// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListRooms returns the member's chat rooms.
func (c *Client) ListRooms(ctx context.Context) (*RoomList, error) {
	var list RoomList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/chat/rooms", out: &list})
	if err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []Room{}
	}
	return &list, nil
}

// CreateRoom creates a chat room with the given title.
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	var room Room
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/chat/rooms",
		body:   titleRequest{Title: title},
		out:    &room,
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// RenameRoom changes a room's title.
func (c *Client) RenameRoom(ctx context.Context, id int64, title string) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   roomPath(id),
		body:   titleRequest{Title: title},
	})
}

// DeleteRoom removes a room.
func (c *Client) DeleteRoom(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: roomPath(id)})
}

// SendMessage posts a chat message. roomID is sent as the room_id query
// parameter when non-nil; the server may assign a room and report it back.
func (c *Client) SendMessage(ctx context.Context, roomID *int64, message string, history []Turn) (*ChatResponse, error) {
	if history == nil {
		history = []Turn{}
	}

	var query url.Values
	if roomID != nil {
		query = url.Values{"room_id": {strconv.FormatInt(*roomID, 10)}}
	}

	var resp ChatResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/chat/message",
		query:  query,
		body:   ChatRequest{Message: message, History: history},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func roomPath(id int64) string {
	return "/api/chat/rooms/" + strconv.FormatInt(id, 10)
}
