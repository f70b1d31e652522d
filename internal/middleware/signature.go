package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v4"
)

const (
	HeaderSigner    = "X-Signer"
	HeaderSignature = "X-Signature"

	signerKey = "signer"

	maxSignedBody   = 64 << 10
	replayPruneSize = 4096
)

// SignatureConfig configures RequireSignature.
type SignatureConfig struct {
	// MaxAge bounds how far in the future expires_at may be.
	MaxAge time.Duration
	Now    func() time.Time
}

// SignedMessage is the byte string a client signs: method, path and raw
// body, so a signature cannot be replayed against another route.
func SignedMessage(method, path string, body []byte) []byte {
	msg := make([]byte, 0, len(method)+len(path)+len(body)+2)
	msg = append(msg, method...)
	msg = append(msg, ' ')
	msg = append(msg, path...)
	msg = append(msg, '\n')
	return append(msg, body...)
}

// RequireSignature authenticates the request with an ed25519 signature of
// SignedMessage by the key in X-Signer. The JSON body must carry expires_at
// (unix seconds) in (now, now+MaxAge]. Each signature is accepted once.
func RequireSignature(config SignatureConfig) gin.HandlerFunc {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 5 * time.Minute
	}
	seen := xsync.NewMap[solana.Signature, int64]()

	return func(c *gin.Context) {
		signer, err := solana.PublicKeyFromBase58(c.GetHeader(HeaderSigner))
		if err != nil {
			abort(c, http.StatusUnauthorized, "missing or invalid "+HeaderSigner+" header")
			return
		}
		signature, err := solana.SignatureFromBase58(c.GetHeader(HeaderSignature))
		if err != nil {
			abort(c, http.StatusUnauthorized, "missing or invalid "+HeaderSignature+" header")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBody+1))
		if err != nil {
			abort(c, http.StatusBadRequest, "failed to read body")
			return
		}
		if len(body) > maxSignedBody {
			abort(c, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		if !signature.Verify(signer, SignedMessage(c.Request.Method, c.Request.URL.Path, body)) {
			abort(c, http.StatusUnauthorized, "signature does not match signer")
			return
		}

		var envelope struct {
			ExpiresAt int64 `json:"expires_at"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			abort(c, http.StatusBadRequest, "body must be a JSON object with expires_at")
			return
		}
		now := config.Now().Unix()
		if envelope.ExpiresAt <= now {
			abort(c, http.StatusUnauthorized, "request expired")
			return
		}
		if envelope.ExpiresAt > now+int64(config.MaxAge/time.Second) {
			abort(c, http.StatusUnauthorized, "expires_at too far in the future")
			return
		}

		if seen.Size() > replayPruneSize {
			seen.Range(func(sig solana.Signature, expiresAt int64) bool {
				if expiresAt <= now {
					seen.Delete(sig)
				}
				return true
			})
		}
		if _, loaded := seen.LoadOrStore(signature, envelope.ExpiresAt); loaded {
			abort(c, http.StatusConflict, "signature already used")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(signerKey, signer)
		c.Next()
	}
}

// Signer returns the key verified by RequireSignature.
func Signer(c *gin.Context) (solana.PublicKey, bool) {
	v, ok := c.Get(signerKey)
	if !ok {
		return solana.PublicKey{}, false
	}
	signer, ok := v.(solana.PublicKey)
	return signer, ok
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
