package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/enrollportal/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	cfg      *config.Config
	ran      bool
	migrated bool
	email    string
	password string
	closed   bool
	err      error
}

func (f *fakeApp) Run(ctx context.Context) error {
	f.ran = true
	return f.err
}

func (f *fakeApp) Migrate(ctx context.Context) error {
	f.migrated = true
	return f.err
}

func (f *fakeApp) ResetPassword(ctx context.Context, email, password string) error {
	f.email, f.password = email, password
	return f.err
}

func (f *fakeApp) Close() error {
	f.closed = true
	return nil
}

func stubApp(t *testing.T, app *fakeApp, newErr error) {
	t.Helper()
	old := newApp
	newApp = func(cfg *config.Config) (runner, error) {
		app.cfg = cfg
		if newErr != nil {
			return nil, newErr
		}
		return app, nil
	}
	t.Cleanup(func() { newApp = old })
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	old := readPassword
	i := 0
	readPassword = func(fd int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		a := answers[i]
		i++
		return []byte(a), nil
	}
	t.Cleanup(func() { readPassword = old })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestServe_LoadsFlagsAndRuns(t *testing.T) {
	app := &fakeApp{}
	stubApp(t, app, nil)

	_, err := execute(t, "serve", "--http-addr", ":9999", "--log-level", "debug")
	require.NoError(t, err)

	assert.True(t, app.ran)
	assert.True(t, app.closed)
	require.NotNil(t, app.cfg)
	assert.Equal(t, ":9999", app.cfg.HTTPAddr)
	assert.Equal(t, "debug", app.cfg.LogLevel)
}

func TestServe_RunErrorStillCloses(t *testing.T) {
	app := &fakeApp{err: errors.New("boom")}
	stubApp(t, app, nil)

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, app.closed)
}

func TestServe_InvalidConfig(t *testing.T) {
	app := &fakeApp{}
	stubApp(t, app, nil)

	_, err := execute(t, "serve", "--blob-backend", "ftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
	assert.False(t, app.ran)
}

func TestMigrate(t *testing.T) {
	app := &fakeApp{}
	stubApp(t, app, nil)

	_, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.True(t, app.migrated)
	assert.False(t, app.ran)
	assert.True(t, app.closed)
}

func TestMigrate_NewAppError(t *testing.T) {
	stubApp(t, &fakeApp{}, errors.New("db init error"))

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestResetPassword(t *testing.T) {
	app := &fakeApp{}
	stubApp(t, app, nil)
	stubPasswords(t, "n3w-passw0rd", "n3w-passw0rd")

	out, err := execute(t, "reset-password", "--email", " ann@example.com ")
	require.NoError(t, err)

	assert.Equal(t, "ann@example.com", app.email)
	assert.Equal(t, "n3w-passw0rd", app.password)
	assert.Contains(t, out, "Password updated.")
	assert.True(t, app.closed)
}

func TestResetPassword_Mismatch(t *testing.T) {
	app := &fakeApp{}
	stubApp(t, app, nil)
	stubPasswords(t, "one-password", "another-one")

	_, err := execute(t, "reset-password", "-e", "ann@example.com")
	require.ErrorIs(t, err, errPasswordMismatch)
	assert.Nil(t, app.cfg)
}

func TestResetPassword_RequiresEmail(t *testing.T) {
	stubApp(t, &fakeApp{}, nil)
	stubPasswords(t, "x", "x")

	_, err := execute(t, "reset-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestResetPassword_ServiceError(t *testing.T) {
	app := &fakeApp{err: errors.New("not found")}
	stubApp(t, app, nil)
	stubPasswords(t, "abcdefgh", "abcdefgh")

	out, err := execute(t, "reset-password", "--email", "ghost@example.com")
	require.Error(t, err)
	assert.NotContains(t, out, "Password updated.")
	assert.True(t, app.closed)
}
