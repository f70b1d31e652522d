package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakeledger/internal/custody"
	"stakeledger/internal/ledger"
	"stakeledger/internal/middleware"
	"stakeledger/internal/models"
	"stakeledger/internal/store"
	dbconfig "stakeledger/pkg/config"
)

var (
	stakingLedger *ledger.Ledger
	accountStore  *store.GormStore
)

// Setup wires the ledger and store the handlers operate on. Reads go
// straight to dbconfig.DB.
func Setup(l *ledger.Ledger, s *store.GormStore) {
	stakingLedger = l
	accountStore = s
}

var classStatus = map[ledger.Class]int{
	ledger.ClassValidation:    http.StatusBadRequest,
	ledger.ClassState:         http.StatusConflict,
	ledger.ClassAuthorization: http.StatusForbidden,
	ledger.ClassNotFound:      http.StatusNotFound,
	ledger.ClassContention:    http.StatusLocked,
	ledger.ClassArithmetic:    http.StatusUnprocessableEntity,
}

// respondError writes err with the status of its ledger error class.
func respondError(c *gin.Context, err error) {
	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) {
		status, ok := classStatus[ledgerErr.Class]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": ledgerErr.Code, "name": ledgerErr.Name})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, custody.ErrAccountNotFound), errors.Is(err, custody.ErrMintNotFound):
		status = http.StatusNotFound
	case errors.Is(err, custody.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, custody.ErrUnknownProgram):
		status = http.StatusBadRequest
	case errors.Is(err, custody.ErrOverflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramKey parses a base58 path parameter, writing a 400 on failure.
func paramKey(c *gin.Context, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + err.Error()})
		return solana.PublicKey{}, false
	}
	return key, true
}

func parseKey(s string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(s)
}

// signer returns the verified request signer. RequireSignature guarantees
// it on signed routes.
func signer(c *gin.Context) (solana.PublicKey, bool) {
	key, ok := middleware.Signer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "request is not signed"})
	}
	return key, ok
}

// uiAmount renders raw token units with the mint's decimals.
func uiAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// mintDecimals returns the decimals of every known mint in addresses.
func mintDecimals(addresses ...string) map[string]uint8 {
	out := make(map[string]uint8, len(addresses))
	var mints []models.TokenMint
	if err := dbconfig.DB.Where("address IN ?", addresses).Find(&mints).Error; err != nil {
		log.WithError(err).Warn("failed to load mint decimals")
		return out
	}
	for _, m := range mints {
		out[m.Address] = m.Decimals
	}
	return out
}
