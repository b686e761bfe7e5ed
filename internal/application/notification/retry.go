package notification

import "time"

// retrySchedule es la agenda fija de reintentos: offsets estrictamente
// crecientes y finitos. Agotada la agenda, la notificación pasa a failed.
var retrySchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

// nextRetryOffset devuelve el offset para el intento fallido número attempt
// (1-based). ok=false cuando la agenda está agotada.
func nextRetryOffset(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > len(retrySchedule) {
		return 0, false
	}
	return retrySchedule[attempt-1], true
}

// MaxAttempts cantidad de reintentos que cubre la agenda. Cada falla de
// entrega consume una entrada; a la falla MaxAttempts()+1 ya no queda
// reintento y la notificación pasa al estado terminal failed.
func MaxAttempts() int { return len(retrySchedule) }
