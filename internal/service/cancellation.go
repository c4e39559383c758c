package service

import "time"

// Пороги возврата при отмене студентом, в часах до начала урока
const (
	FullRefundHours = 24
	HalfRefundHours = 12
)

// CancellationQuote результат расчёта отмены
type CancellationQuote struct {
	RefundPercent       int   `json:"refund_percent"`
	RefundAmount        int64 `json:"refund_amount"`
	TeacherCompensation int64 `json:"teacher_compensation"`
}

// RefundPercent процент возврата по времени до начала урока
func RefundPercent(hoursUntilStart float64) int {
	switch {
	case hoursUntilStart > FullRefundHours:
		return 100
	case hoursUntilStart > HalfRefundHours:
		return 50
	default:
		return 0
	}
}

// RefundAmount считает возврат в центах с округлением половины вверх
func RefundAmount(amountPaid int64, percent int) int64 {
	if amountPaid <= 0 || percent <= 0 {
		return 0
	}
	return (amountPaid*int64(percent) + 50) / 100
}

// HoursUntil разница между началом урока и текущим моментом в часах
func HoursUntil(startsAt, now time.Time) float64 {
	return startsAt.Sub(now).Hours()
}

// StudentCancellation отмена студентом: возврат по ступеням, удержанная часть
// делится с учителем так же, как при выплате за урок
func StudentCancellation(amountPaid int64, hoursUntilStart float64) CancellationQuote {
	percent := RefundPercent(hoursUntilStart)
	refund := RefundAmount(amountPaid, percent)
	teacherShare, _ := SplitPayout(amountPaid - refund)

	return CancellationQuote{
		RefundPercent:       percent,
		RefundAmount:        refund,
		TeacherCompensation: teacherShare,
	}
}

// TeacherCancellation отмена учителем: всегда полный возврат и ноль учителю,
// сколько бы времени ни оставалось до урока
func TeacherCancellation(amountPaid int64) CancellationQuote {
	return CancellationQuote{
		RefundPercent:       100,
		RefundAmount:        RefundAmount(amountPaid, 100),
		TeacherCompensation: 0,
	}
}
