package domain

import "math"

// KellySize calcula el tamaño de posición usando el criterio de Kelly fraccional.
//
// Fórmula:
//
//	b = (1 - price) / price   (odds implícitos del token binario)
//	f = (p·b - q) / b         con p = confidence, q = 1 - p
//	size = min(maxSize, f × fraction × maxSize)
//
// f se trunca a 0 si es negativo (sin edge → sin posición). El resultado se
// redondea al centavo. Devuelve 0 si price está fuera de (0, 1).
func KellySize(confidence, price, fraction, maxSize float64) float64 {
	if price <= 0 || price >= 1 || maxSize <= 0 {
		return 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	b := (1 - price) / price
	p := confidence
	q := 1 - p

	f := (p*b - q) / b
	if f < 0 {
		f = 0
	}

	size := f * fraction * maxSize
	if size > maxSize {
		size = maxSize
	}
	return math.Floor(size*100) / 100
}

// Clamp limita v al rango [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
