package remote

import (
	"errors"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const tokenName = "jsbridge-channel"

// tokenIssuer signs the session id handed to the served page. Requests to
// the bridge and eval endpoints must present it.
type tokenIssuer struct {
	codec   *securecookie.SecureCookie
	session string
	token   string
}

func newTokenIssuer() (*tokenIssuer, error) {
	hashKey := securecookie.GenerateRandomKey(32)
	blockKey := securecookie.GenerateRandomKey(32)
	if hashKey == nil || blockKey == nil {
		return nil, errors.New("generate token keys")
	}

	codec := securecookie.New(hashKey, blockKey).MaxAge(0)
	session := uuid.NewString()
	token, err := codec.Encode(tokenName, session)
	if err != nil {
		return nil, err
	}
	return &tokenIssuer{codec: codec, session: session, token: token}, nil
}

func (t *tokenIssuer) valid(token string) bool {
	if token == "" {
		return false
	}
	var session string
	if err := t.codec.Decode(tokenName, token, &session); err != nil {
		return false
	}
	return session == t.session
}
