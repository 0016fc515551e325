package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "driftchat-service"
	tokenTTL    = 72 * time.Hour
)

var errMissingAnonID = errors.New("token carries no anon_id")

// generateJWT генерує JWT з анонімним ID
func (h *Handler) generateJWT(anonID string) (string, error) {
	// Встановлюємо claims, включаючи anon_id та термін дії
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     h.now().Add(tokenTTL).Unix(),
		"iss":     tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// validateAndGetAnonID перевіряє підпис, термін дії та видавця і повертає anon_id.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return h.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errMissingAnonID
	}
	anonID, ok := claims["anon_id"].(string)
	if !ok || anonID == "" {
		return "", errMissingAnonID
	}
	return anonID, nil
}

// GetAnonID створює AnonID та повертає JWT
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()

	token, err := h.generateJWT(anonID)
	if err != nil {
		h.log.WithError(err).Error("Failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
