// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// profile.go - Member profile.
//
// Command: profile [show | update [--age N] [--region R] [--care-target T]]
//
// The profile fills in the welfare search filters a member leaves out.
// An empty --region or --care-target clears the field.

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/conversation"
)

// HandleProfile shows or updates the member's profile.
func HandleProfile(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw)
	if !a.Classifier.IsMember() {
		return conversation.ErrLoginRequired
	}

	switch sub := p.Subcommand(); sub {
	case "", "show":
		profile, err := a.Client.Profile(ctx)
		if err != nil {
			return err
		}
		return a.printProfile("profile show", profile, "")
	case "update", "set":
		update, err := profileUpdate(p)
		if err != nil {
			return err
		}
		profile, err := a.Client.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}
		return a.printProfile("profile update", profile, "프로필을 저장했습니다.")
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown profile subcommand", "neulbom profile update --region 서울")
	}
}

func profileUpdate(p *ArgParser) (backend.ProfileUpdate, error) {
	var update backend.ProfileUpdate
	if p.HasFlag("age") {
		raw := p.Flag("age")
		n, err := ParseIntWithValidation(raw, "age")
		if err != nil {
			return update, NewValidationError("age", raw, err.Error())
		}
		update.Age = &n
	}
	if p.HasFlag("region") {
		region := p.Flag("region")
		update.Region = &region
	}
	if p.HasFlag("care-target") {
		target := p.Flag("care-target")
		update.CareTarget = &target
	}
	if update.Empty() {
		return update, NewValidationErrorWithExample("profile", "",
			"nothing to update", "neulbom profile update --age 52 --region 서울")
	}
	return update, nil
}

func (a *App) printProfile(command string, profile *backend.Profile, headline string) error {
	if a.Args.JSON {
		return NewJSONResponse(command, profile).Print(a.Out)
	}
	if headline != "" {
		fmt.Fprintln(a.Out, SuccessStyle.Render(headline))
	}
	age := "-"
	if profile.Age != nil {
		age = strconv.Itoa(*profile.Age)
	}
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("계정"), profile.Email)
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("나이"), age)
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("지역"), orDash(profile.Region))
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("돌봄 대상"), orDash(profile.CareTarget))
	return nil
}
