package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/session"
	"github.com/ksutools/portalgate/internal/testutil"
	"github.com/ksutools/portalgate/internal/upstream"
)

type fakeIssuer struct {
	token string
	err   error
	calls int
}

func (f *fakeIssuer) Login(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeIdentity struct {
	user  *upstream.Identity
	err   error
	calls int
	// lastToken records what credential the lookup was made with.
	lastToken string
}

func (f *fakeIdentity) Identity(_ context.Context, token string) (*upstream.Identity, error) {
	f.calls++
	f.lastToken = token
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func someUser() *upstream.Identity {
	return &upstream.Identity{
		Username: "2023001",
		UserName: "张三",
		UserUID:  "uid-42",
		UserID:   "id-42",
	}
}

func TestFacade_Login(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	issuer := &fakeIssuer{token: "tok-1"}
	identity := &fakeIdentity{user: someUser()}
	f := session.New(issuer, identity, kv, &testutil.DummyLogger{})

	if f.State() != session.StateAnonymous {
		t.Fatalf("initial state = %q", f.State())
	}

	user, err := f.Login(context.Background(), "2023001", "hunter2", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.UserUID != "uid-42" {
		t.Errorf("user uid = %q", user.UserUID)
	}
	if f.State() != session.StateAuthenticated {
		t.Errorf("state = %q, want authenticated", f.State())
	}
	if identity.lastToken != "tok-1" {
		t.Errorf("identity resolved with token %q", identity.lastToken)
	}

	token, current, err := f.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if token != "tok-1" || current.Username != "2023001" {
		t.Errorf("Current = %q, %+v", token, current)
	}
	if f.RememberedUsername() != "2023001" {
		t.Errorf("remembered username = %q", f.RememberedUsername())
	}
}

func TestFacade_Login_WithoutRememberClearsSavedUsername(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	f := session.New(&fakeIssuer{token: "tok-1"}, &fakeIdentity{user: someUser()}, kv, &testutil.DummyLogger{})

	if _, err := f.Login(context.Background(), "2023001", "hunter2", true); err != nil {
		t.Fatalf("remembered login: %v", err)
	}
	if _, err := f.Login(context.Background(), "2023001", "hunter2", false); err != nil {
		t.Fatalf("unremembered login: %v", err)
	}
	if got := f.RememberedUsername(); got != "" {
		t.Errorf("remembered username survived an unremembered login: %q", got)
	}
}

func TestFacade_Login_IssuerFailure(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	wantErr := errors.New("cas rejected")
	identity := &fakeIdentity{user: someUser()}
	f := session.New(&fakeIssuer{err: wantErr}, identity, kv, &testutil.DummyLogger{})

	_, err := f.Login(context.Background(), "2023001", "wrong", false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want issuer error", err)
	}
	if f.State() != session.StateAnonymous {
		t.Errorf("state = %q, want anonymous after failed login", f.State())
	}
	if identity.calls != 0 {
		t.Error("identity was resolved despite issuer failure")
	}
	if _, _, err := f.Current(); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("Current err = %v, want ErrNotAuthenticated", err)
	}
}

func TestFacade_Login_IdentityFailureLeavesNoCredential(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	f := session.New(
		&fakeIssuer{token: "tok-1"},
		&fakeIdentity{err: &upstream.Error{Kind: upstream.KindDomain, Message: "expired"}},
		kv, &testutil.DummyLogger{})

	if _, err := f.Login(context.Background(), "2023001", "hunter2", false); err == nil {
		t.Fatal("expected identity failure to fail the login")
	}
	if f.State() != session.StateAnonymous {
		t.Errorf("state = %q", f.State())
	}

	// A half-written session must not be restorable later.
	if _, err := f.AutoLogin(context.Background()); !errors.Is(err, session.ErrNoSavedSession) {
		t.Errorf("AutoLogin err = %v, want ErrNoSavedSession", err)
	}
}

func TestFacade_AutoLogin_RestoresAcrossRestart(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	identity := &fakeIdentity{user: someUser()}
	first := session.New(&fakeIssuer{token: "tok-1"}, identity, kv, &testutil.DummyLogger{})
	if _, err := first.Login(context.Background(), "2023001", "hunter2", true); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A new facade over the same store stands in for a process restart.
	second := session.New(&fakeIssuer{token: "unused"}, identity, kv, &testutil.DummyLogger{})
	user, err := second.AutoLogin(context.Background())
	if err != nil {
		t.Fatalf("AutoLogin: %v", err)
	}
	if user.Username != "2023001" {
		t.Errorf("restored user = %+v", user)
	}
	if second.State() != session.StateAuthenticated {
		t.Errorf("state = %q", second.State())
	}
	if identity.lastToken != "tok-1" {
		t.Errorf("restore validated token %q", identity.lastToken)
	}
}

func TestFacade_AutoLogin_NoSavedSession(t *testing.T) {
	t.Parallel()

	f := session.New(&fakeIssuer{}, &fakeIdentity{}, kvstore.NewMemory(), &testutil.DummyLogger{})
	if _, err := f.AutoLogin(context.Background()); !errors.Is(err, session.ErrNoSavedSession) {
		t.Errorf("err = %v, want ErrNoSavedSession", err)
	}
	if f.State() != session.StateAnonymous {
		t.Errorf("state = %q", f.State())
	}
}

func TestFacade_AutoLogin_StaleTokenKeepsCredential(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	identity := &fakeIdentity{user: someUser()}
	first := session.New(&fakeIssuer{token: "tok-1"}, identity, kv, &testutil.DummyLogger{})
	if _, err := first.Login(context.Background(), "2023001", "hunter2", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Validation fails on restart, maybe a network blip. The credential
	// stays so the user can retry.
	identity.err = &upstream.Error{Kind: upstream.KindTransport, Message: "unreachable"}
	second := session.New(&fakeIssuer{}, identity, kv, &testutil.DummyLogger{})
	if _, err := second.AutoLogin(context.Background()); err == nil {
		t.Fatal("expected validation failure to surface")
	}
	if second.State() != session.StateAnonymous {
		t.Errorf("state = %q", second.State())
	}

	identity.err = nil
	if _, err := second.AutoLogin(context.Background()); err != nil {
		t.Errorf("retry after blip failed: %v", err)
	}
}

func TestFacade_Logout(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemory()
	identity := &fakeIdentity{user: someUser()}
	f := session.New(&fakeIssuer{token: "tok-1"}, identity, kv, &testutil.DummyLogger{})
	if _, err := f.Login(context.Background(), "2023001", "hunter2", true); err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.Logout()

	if f.State() != session.StateAnonymous {
		t.Errorf("state = %q", f.State())
	}
	if _, _, err := f.Current(); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("Current err = %v", err)
	}
	if _, err := f.AutoLogin(context.Background()); !errors.Is(err, session.ErrNoSavedSession) {
		t.Errorf("AutoLogin err = %v, want ErrNoSavedSession", err)
	}

	// The convenience value outlives the session.
	if f.RememberedUsername() != "2023001" {
		t.Errorf("remembered username = %q, want it kept after logout", f.RememberedUsername())
	}
}
