package user

import (
	"testing"
	"time"

	"github.com/trezcool/academia/core"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:                       "Academia",
		SecretKey:                     []byte("secret"),
		PasswordResetTimeoutDelta:     3 * 24 * time.Hour,
		EmailVerificationTimeoutDelta: 24 * time.Hour,
	}
}

func TestMakeVerifyToken(t *testing.T) {
	conf := testConfig()

	now := time.Now()
	usr := User{
		ID:        "6d05199f-e255-4c25-9fc9-eede69ae4e12",
		Email:     "t@test.test",
		Role:      core.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := MakePasswordResetToken(conf, usr)
	if err != nil {
		t.Fatalf("MakePasswordResetToken() error = %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakePasswordResetToken(conf, usr)
	if err != nil {
		t.Fatalf("MakePasswordResetToken() error = %v", err)
	}
	NowFunc = time.Now // reset

	// a token minted for another purpose must not verify
	verifToken, err := MakeEmailVerificationToken(conf, usr)
	if err != nil {
		t.Fatalf("MakeEmailVerificationToken() error = %v", err)
	}

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "wrong purpose", usr: usr, token: verifToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyPasswordResetToken(conf, tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyPasswordResetToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMakeVerifyEmailToken(t *testing.T) {
	conf := testConfig()

	now := time.Now()
	usr := User{
		ID:        "c7b1e37e-16ad-4f9c-bf17-4b0608af44b1",
		Email:     "t@test.test",
		Role:      core.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = usr.SetPassword("pwd")

	token, err := MakeEmailVerificationToken(conf, usr)
	if err != nil {
		t.Fatalf("MakeEmailVerificationToken() error = %v", err)
	}

	if err = verifyEmailVerificationToken(conf, usr, token); err != nil {
		t.Errorf("verifyEmailVerificationToken() error = %v, want nil", err)
	}

	// confirming the email invalidates outstanding tokens
	usr.EmailConfirmed = true
	if err = verifyEmailVerificationToken(conf, usr, token); err != errInvalidToken {
		t.Errorf("verifyEmailVerificationToken() error = %v, wantErr %v", err, errInvalidToken)
	}
}
