package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"vpn-ledger-go/internal/models"
)

var (
	errInitDataSignature = errors.New("init data signature mismatch")
	errInitDataExpired   = errors.New("init data is too old")
)

// initDataMaxAge bounds replay of captured init data.
const initDataMaxAge = 24 * time.Hour

// validateInitData checks the HMAC signature Telegram attaches to Mini App
// init data and extracts the embedded user profile. The secret key is
// HMAC-SHA256("WebAppData", botToken) per the Telegram protocol.
func validateInitData(initData, botToken string, now time.Time) (*models.TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, errInitDataSignature
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, errInitDataSignature
	}

	var authDate int64
	if _, err := fmt.Sscanf(values.Get("auth_date"), "%d", &authDate); err != nil {
		return nil, fmt.Errorf("failed to parse auth_date: %w", err)
	}
	if now.Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return nil, errInitDataExpired
	}

	var user models.TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, fmt.Errorf("failed to parse user field: %w", err)
	}
	if user.Id == 0 {
		return nil, fmt.Errorf("init data user has no id")
	}

	return &user, nil
}
