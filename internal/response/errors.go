package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"

	// ─── Session ───────────────────────────────────────────────────────
	ErrInvalidTransition    ErrCode = "INVALID_TRANSITION"
	ErrOperationPending     ErrCode = "OPERATION_PENDING"
	ErrConfirmationRequired ErrCode = "CONFIRMATION_REQUIRED"
	ErrQuestionLocked       ErrCode = "QUESTION_LOCKED"
	ErrUnknownQuestion      ErrCode = "UNKNOWN_QUESTION"
	ErrNothingToRetry       ErrCode = "NOTHING_TO_RETRY"
	ErrAttemptNotFound      ErrCode = "ATTEMPT_NOT_FOUND"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream           ErrCode = "UPSTREAM_ERROR"
	ErrFeatureUnavailable ErrCode = "FEATURE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."
	case ErrSessionNotFound:
		return "Sesi tidak ditemukan. Muat ulang halaman ujian."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrInvalidTransition:
		return "Tindakan ini tidak dapat dilakukan pada status sesi saat ini."
	case ErrOperationPending:
		return "Permintaan sebelumnya masih diproses."
	case ErrConfirmationRequired:
		return "Masih ada soal yang belum dijawab. Konfirmasi untuk tetap mengumpulkan."
	case ErrQuestionLocked:
		return "Soal ini sudah dijawab dengan benar dan tidak dapat diubah."
	case ErrUnknownQuestion:
		return "Soal tidak termasuk dalam sesi ini."
	case ErrNothingToRetry:
		return "Tidak ada soal yang salah untuk diulang."
	case ErrAttemptNotFound:
		return "Percobaan belum dimulai."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "Layanan ujian sedang tidak dapat dihubungi. Jawaban Anda tetap tersimpan."
	case ErrFeatureUnavailable:
		return "Fitur ini tidak tersedia pada konfigurasi server saat ini."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
