package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dchest/uniuri"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/spruceid/siwe-go"

	"beehive/internal/api/jwt"
	"beehive/internal/hiveapi"
)

var ctx = context.Background()

type signinParams struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	RefCode   string `json:"referral_code" validate:"max=12"`
}

// Nonce instead of storing the nonce in db for an inexistant member we just put it in some redis that expires
func Nonce(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address := c.Param("address")

	if !hiveapi.IsValidWallet(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format"})
		return
	}

	nonce := siwe.GenerateNonce()

	err := app.Rdb.Set(ctx, hiveapi.NormalizeWallet(address), nonce, 1*time.Minute).Err()
	if err != nil {
		log.Fatal(err)
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce": nonce,
	})
}

// Signin Sign in with SIWE
func Signin(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	var signinP signinParams
	if err := c.ShouldBindJSON(&signinP); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// parse message to siwe
	siweMessage, err := siwe.ParseMessage(signinP.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// get the nonce in cache for address
	addr := hiveapi.NormalizeWallet(siweMessage.GetAddress().String())
	nonce, err := app.Rdb.Get(ctx, addr).Result()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return

	}
	// domain will be cors restricted its fine to just use the one from the message
	domain := siweMessage.GetDomain()
	// verify signature
	publicKey, err := siweMessage.Verify(signinP.Signature, &domain, &nonce, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr = hiveapi.NormalizeWallet(crypto.PubkeyToAddress(*publicKey).Hex())
	if addr == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "signature rejected"})
		return
	}

	store := hiveapi.NewStore(app.Db)
	member, err := store.GetMember(addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	isSignup := false
	if member == nil {
		referrer := ""
		if signinP.RefCode != "" {
			ref, err := store.MemberByReferralCode(signinP.RefCode)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if ref != nil {
				referrer = ref.WalletAddress
			}
		}
		if referrer == "" {
			referrer = hiveapi.NormalizeWallet(os.Getenv("COMPANY_ROOT_WALLET"))
			if referrer == addr {
				referrer = ""
			}
		}
		member = &hiveapi.Member{
			WalletAddress:  addr,
			ReferrerWallet: referrer,
			ReferralCode:   newReferralCode(store),
		}
		if err := store.CreateMember(member); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		isSignup = true
		msg := fmt.Sprintf(
			"Wallet connected\n[%s](https://bscscan.com/address/%s)",
			hiveapi.EscapeMarkdownV2(addr),
			addr,
		)
		if err := hiveapi.SendTelegramMessage(msg, "signup"); err != nil {
			fmt.Println(err)
		}
	}

	token, err := jwt.GenerateJWT(addr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member":    member,
		"is_signup": isSignup,
		"jwt":       token,
	})
}

func newReferralCode(store hiveapi.Store) string {
	for {
		code := uniuri.NewLenChars(8, []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"))
		double, err := store.MemberByReferralCode(code)
		if err == nil && double == nil {
			return code
		}
	}
}
