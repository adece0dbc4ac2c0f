package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

var issuedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func staticKey(key string) KeySource {
	return func(context.Context) ([]byte, error) { return []byte(key), nil }
}

func TestJWT_Validate(t *testing.T) {
	Convey("Given an HS256 validator", t, func() {
		ctx := context.Background()
		v := NewJWT(staticKey("s3cret"), WithIssuer("fleetready"),
			WithClock(func() time.Time { return issuedAt.Add(time.Minute) }))

		Convey("When a valid token is presented", func() {
			tok, err := Sign([]byte("s3cret"), "fleetready", "ops", issuedAt, time.Hour)
			So(err, ShouldBeNil)
			p, err := v.Validate(ctx, tok)

			Convey("Then the subject is returned", func() {
				So(err, ShouldBeNil)
				So(p.Subject, ShouldEqual, "ops")
				So(p.Method, ShouldEqual, "jwt")
				So(p.ExpiresAt.Equal(issuedAt.Add(time.Hour)), ShouldBeTrue)
			})
		})

		Convey("When the token is signed with another key", func() {
			tok, _ := Sign([]byte("other"), "fleetready", "ops", issuedAt, time.Hour)
			_, err := v.Validate(ctx, tok)
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When the token has expired", func() {
			tok, _ := Sign([]byte("s3cret"), "fleetready", "ops", issuedAt.Add(-2*time.Hour), time.Hour)
			_, err := v.Validate(ctx, tok)
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
			So(errors.Is(err, jwt.ErrTokenExpired), ShouldBeTrue)
		})

		Convey("When the issuer differs", func() {
			tok, _ := Sign([]byte("s3cret"), "someone-else", "ops", issuedAt, time.Hour)
			_, err := v.Validate(ctx, tok)
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When the token uses a different algorithm", func() {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "fleetready", Subject: "ops", ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
			}}).SignedString([]byte("s3cret"))
			_, err := v.Validate(ctx, tok)
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When no token is presented", func() {
			_, err := v.Validate(ctx, "")
			So(errors.Is(err, ErrMissingToken), ShouldBeTrue)
		})
	})

	Convey("Given a validator without a signing key", t, func() {
		v := NewJWT(func(context.Context) ([]byte, error) { return nil, errors.New("not set") })
		_, err := v.Validate(context.Background(), "a.b.c")
		So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		So(errors.Is(err, ErrSigningKey), ShouldBeTrue)
	})
}

func TestAPIKeysAndChain(t *testing.T) {
	Convey("Given an API key validator chained after a JWT validator", t, func() {
		ctx := context.Background()
		keys := NewAPIKeys(map[string]string{"k-123": "vendor-a"})
		chain := Chain{NewJWT(staticKey("s3cret")), keys}

		Convey("Then a known key authenticates", func() {
			p, err := chain.Validate(ctx, "k-123")
			So(err, ShouldBeNil)
			So(p.Subject, ShouldEqual, "vendor-a")
			So(p.Method, ShouldEqual, "api_key")
		})

		Convey("Then an unknown key is refused", func() {
			_, err := chain.Validate(ctx, "k-999")
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Then an empty chain refuses everything", func() {
			_, err := Chain{}.Validate(ctx, "k-123")
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})
	})
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Subject: "ops"})
	p, ok := FromContext(ctx)
	if !ok || p.Subject != "ops" {
		t.Errorf("expected principal ops, got %+v (%v)", p, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no principal in empty context")
	}
}
