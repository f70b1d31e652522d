package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stakeledger/internal/custody"
	"stakeledger/internal/models"
	dbconfig "stakeledger/pkg/config"
)

type MintRequest struct {
	Address  string `json:"address" binding:"required"`
	Decimals uint8  `json:"decimals"`
	Program  string `json:"program" binding:"required"`
}

type TokenAccountRequest struct {
	AccountAddress string `json:"account_address" binding:"required"`
	Mint           string `json:"mint" binding:"required"`
	OwnerAddress   string `json:"owner_address" binding:"required"`
}

type CreditRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// TokenAccountResp 代币账户响应结构体
type TokenAccountResp struct {
	AccountAddress string `json:"account_address"`
	Mint           string `json:"mint"`
	OwnerAddress   string `json:"owner_address"`
	Amount         uint64 `json:"amount"`
	AmountUI       string `json:"amount_ui"`
}

func tokenAccountResp(a *models.TokenAccount) TokenAccountResp {
	return TokenAccountResp{
		AccountAddress: a.AccountAddress,
		Mint:           a.Mint,
		OwnerAddress:   a.OwnerAddress,
		Amount:         uint64(a.Amount),
		AmountUI:       uiAmount(uint64(a.Amount), mintDecimals(a.Mint)[a.Mint]),
	}
}

// GetTokenAccount returns a custody account by address
func GetTokenAccount(c *gin.Context) {
	address, ok := paramKey(c, "address")
	if !ok {
		return
	}
	var account models.TokenAccount
	if err := dbconfig.DB.Where("account_address = ?", address.String()).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, tokenAccountResp(&account))
}

// RegisterMint mirrors an external mint. The program must be SPL Token or
// Token-2022.
func RegisterMint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address, ok := bodyKey(c, "address", req.Address)
	if !ok {
		return
	}
	program, ok := bodyKey(c, "program", req.Program)
	if !ok {
		return
	}
	if _, err := custody.DefaultRegistry().Lookup(program); err != nil {
		respondError(c, err)
		return
	}

	mint, err := accountStore.RegisterMint(c.Request.Context(), custody.Mint{
		Address:  address,
		Decimals: req.Decimals,
		Program:  program,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	log.WithFields(log.Fields{"mint": mint.Address, "program": mint.Program}).Info("mint registered")
	c.JSON(http.StatusCreated, mint)
}

// RegisterTokenAccount mirrors an external token account with a zero balance
func RegisterTokenAccount(c *gin.Context) {
	var req TokenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address, ok := bodyKey(c, "account_address", req.AccountAddress)
	if !ok {
		return
	}
	mint, ok := bodyKey(c, "mint", req.Mint)
	if !ok {
		return
	}
	owner, ok := bodyKey(c, "owner_address", req.OwnerAddress)
	if !ok {
		return
	}

	account := custody.Account{Address: address, Mint: mint, Owner: owner}
	if err := accountStore.RegisterTokenAccount(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	row := models.TokenAccount{
		AccountAddress: address.String(),
		Mint:           mint.String(),
		OwnerAddress:   owner.String(),
	}
	c.JSON(http.StatusCreated, tokenAccountResp(&row))
}

// CreditTokenAccount mirrors a deposit made outside the ledger
func CreditTokenAccount(c *gin.Context) {
	address, ok := paramKey(c, "address")
	if !ok {
		return
	}
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := accountStore.Credit(c.Request.Context(), address, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	log.WithFields(log.Fields{"account": address, "amount": req.Amount}).Info("token account credited")
	row := models.TokenAccount{
		AccountAddress: account.Address.String(),
		Mint:           account.Mint.String(),
		OwnerAddress:   account.Owner.String(),
		Amount:         models.U64(account.Amount),
	}
	c.JSON(http.StatusOK, tokenAccountResp(&row))
}
