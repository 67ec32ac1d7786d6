// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - login, signup, logout and whoami.
//
// The credential is stored under the same key the web client uses, so
// a login here switches every other neulbom process to member mode on its
// next operation. Conversations kept on this device survive logout.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/session"
)

// HandleLogin exchanges email and password for a token and stores it.
func HandleLogin(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw, "password-stdin")

	email, err := a.emailArg(p)
	if err != nil {
		return err
	}
	password, err := a.passwordArg(p, "비밀번호: ")
	if err != nil {
		return err
	}

	tok, err := a.Client.Anonymous().Login(ctx, email, password)
	if err != nil {
		if backend.IsAuthError(err) {
			return &authFailure{msg: "이메일 또는 비밀번호가 올바르지 않습니다", err: err}
		}
		return err
	}
	if err := a.Classifier.SetToken(tok.AccessToken); err != nil {
		return WrapError(err, "failed to store credential")
	}
	a.Logger.Printf("cli: logged in as %s (token %s)", email, session.Fingerprint(tok.AccessToken))

	return a.reportSession(ctx, "login", "로그인했습니다.")
}

// HandleSignup registers an account and logs in with it.
func HandleSignup(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw, "password-stdin")

	email, err := a.emailArg(p)
	if err != nil {
		return err
	}
	password, err := a.passwordArg(p, "비밀번호: ")
	if err != nil {
		return err
	}
	confirm := password
	if !p.BoolFlag("password-stdin") {
		if confirm, err = a.readPassword("비밀번호 확인: "); err != nil {
			return err
		}
	}
	if confirm != password {
		return NewValidationError("password", "", "passwords do not match")
	}

	req := backend.SignupRequest{
		Name:            p.Flag("name"),
		Email:           email,
		Password:        password,
		PasswordConfirm: confirm,
		Region:          p.Flag("region"),
		CareTarget:      p.Flag("care-target"),
	}
	if age := p.Flag("age"); age != "" {
		n, err := ParseIntWithValidation(age, "age")
		if err != nil {
			return NewValidationError("age", age, err.Error())
		}
		req.Age = &n
	}

	tok, err := a.Client.Anonymous().Signup(ctx, req)
	if err != nil {
		switch backend.StatusOf(err) {
		case 400, 409, 422:
			return &authFailure{msg: "가입할 수 없습니다: " + detailOf(err), err: err}
		}
		return err
	}
	if err := a.Classifier.SetToken(tok.AccessToken); err != nil {
		return WrapError(err, "failed to store credential")
	}
	return a.reportSession(ctx, "signup", "가입하고 로그인했습니다.")
}

// HandleLogout forgets the credential. Local conversations are kept.
func HandleLogout(ctx context.Context, a *App) error {
	wasMember := a.Classifier.IsMember()
	if err := a.Classifier.ClearToken(); err != nil {
		return WrapError(err, "failed to clear credential")
	}

	if a.Args.JSON {
		return NewJSONResponse("logout", WhoamiData{
			Mode:   a.Classifier.Mode().String(),
			Server: a.Client.BaseURL(),
		}).Print(a.Out)
	}
	if wasMember {
		fmt.Fprintln(a.Out, SuccessStyle.Render("로그아웃했습니다.")+" "+
			DimStyle.Render("이 기기에 저장된 대화는 그대로 남아 있습니다."))
	} else {
		fmt.Fprintln(a.Out, DimStyle.Render("로그인되어 있지 않습니다."))
	}
	return nil
}

// HandleWhoami shows the session mode and, for members, the account.
func HandleWhoami(ctx context.Context, a *App) error {
	return a.reportSession(ctx, "whoami", "")
}

// reportSession prints the current session after a login, or on request.
func (a *App) reportSession(ctx context.Context, command, headline string) error {
	token := a.Classifier.Token()
	data := WhoamiData{
		Mode:   a.Classifier.Mode().String(),
		Server: a.Client.BaseURL(),
	}

	if token != "" {
		data.Fingerprint = session.Fingerprint(token)
		if claims, err := session.ParseClaims(token); err == nil {
			data.Email = claims.Email
			if !claims.ExpiresAt.IsZero() {
				data.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
			}
		}

		valid := true
		profile, err := a.Client.Profile(ctx)
		switch {
		case err == nil:
			data.Email = profile.Email
			data.UserID = profile.ID
		case backend.IsAuthError(err):
			valid = false
		default:
			a.Logger.Printf("cli: profile: %v", err)
		}
		if err == nil || backend.IsAuthError(err) {
			data.Valid = &valid
		}
	}

	if a.Args.JSON {
		return NewJSONResponse(command, data).Print(a.Out)
	}

	if headline != "" {
		fmt.Fprintln(a.Out, SuccessStyle.Render(headline))
	}
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("모드"), a.Classifier.Mode().Label())
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("서버"), data.Server)
	if data.Email != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("계정"), data.Email)
	}
	if data.Fingerprint != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("토큰"), DimStyle.Render(data.Fingerprint))
	}
	if data.ExpiresAt != "" {
		exp, _ := time.Parse(time.RFC3339, data.ExpiresAt)
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("만료"), formatCreated(exp))
	}
	if data.Valid != nil && !*data.Valid {
		fmt.Fprintln(a.Out, WarningStyle.Render("서버가 이 토큰을 거부했습니다. 다시 로그인해 주세요."))
	}
	return nil
}

func (a *App) emailArg(p *ArgParser) (string, error) {
	email := strings.TrimSpace(p.FlagOrDefault("email", p.Positional(0)))
	if email == "" && !p.BoolFlag("password-stdin") {
		var err error
		if email, err = a.promptInput("이메일: "); err != nil {
			return "", ErrMissingArgument("email", "neulbom login --email me@example.com")
		}
	}
	if email == "" || !strings.Contains(email, "@") {
		return "", NewValidationErrorWithExample("email", email, "a valid email is required",
			"neulbom login --email me@example.com")
	}
	return email, nil
}

func (a *App) passwordArg(p *ArgParser, prompt string) (string, error) {
	if p.BoolFlag("password-stdin") {
		pw, err := a.readPassword("")
		if err != nil {
			return "", ErrMissingArgument("password", "echo secret | neulbom login --email me@example.com --password-stdin")
		}
		return pw, nil
	}
	pw, err := a.readPassword(prompt)
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", NewValidationError("password", "", "password must not be empty")
	}
	return pw, nil
}

// authFailure is a rejected login or signup. It maps to the auth exit code
// and shows msg instead of the server's text.
type authFailure struct {
	msg string
	err error
}

func (e *authFailure) Error() string { return e.msg }
func (e *authFailure) Unwrap() error { return e.err }

func detailOf(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
