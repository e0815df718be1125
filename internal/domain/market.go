package domain

import (
	"strings"
	"time"
)

// Market representa el mercado binario Up/Down de 15 minutos activo en Polymarket.
type Market struct {
	ConditionID string
	Question    string    // enriquecido desde Gamma
	Slug        string    // enriquecido desde Gamma
	EndDate     time.Time // fin de la ventana de 15 minutos
	Tokens      [2]Token
	Active      bool
	Closed      bool
}

// Token es uno de los dos lados del mercado (Up/Yes o Down/No).
type Token struct {
	TokenID string
	Outcome string  // "Up" | "Down" (mercados crypto) o "Yes" | "No"
	Price   float64 // último precio conocido
}

// Outcome sides used across the engine. Polymarket's 15-minute crypto
// markets label the tokens "Up"/"Down"; older markets use "Yes"/"No".
// Internally YES always means the bullish side.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// YesToken devuelve el token del lado alcista (Up/Yes).
func (m Market) YesToken() Token {
	for _, t := range m.Tokens {
		if isYesOutcome(t.Outcome) {
			return t
		}
	}
	return m.Tokens[0]
}

// NoToken devuelve el token del lado bajista (Down/No).
func (m Market) NoToken() Token {
	for _, t := range m.Tokens {
		if isNoOutcome(t.Outcome) {
			return t
		}
	}
	return m.Tokens[1]
}

// TokenIDs devuelve los dos token IDs en orden [yes, no].
func (m Market) TokenIDs() []string {
	return []string{m.YesToken().TokenID, m.NoToken().TokenID}
}

// SideForToken devuelve SideYes o SideNo según a qué lado pertenece tokenID.
// Devuelve "" si el token no pertenece al mercado.
func (m Market) SideForToken(tokenID string) string {
	switch tokenID {
	case m.YesToken().TokenID:
		return SideYes
	case m.NoToken().TokenID:
		return SideNo
	}
	return ""
}

// MinutesToExpiry devuelve los minutos hasta que el mercado se resuelve.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) MinutesToExpiry(now time.Time) float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	mins := m.EndDate.Sub(now).Minutes()
	if mins < 0 {
		return 0
	}
	return mins
}

// Expired devuelve true si la ventana del mercado ya terminó.
func (m Market) Expired(now time.Time) bool {
	return !m.EndDate.IsZero() && !now.Before(m.EndDate)
}

func isYesOutcome(outcome string) bool {
	switch strings.ToLower(outcome) {
	case "yes", "up":
		return true
	}
	return false
}

func isNoOutcome(outcome string) bool {
	switch strings.ToLower(outcome) {
	case "no", "down":
		return true
	}
	return false
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
