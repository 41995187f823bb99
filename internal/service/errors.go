package service

// Стабильные причины отказа, которые видит клиент
const (
	ReasonInvalidInterval     = "invalid interval: start and end must be exact hours and start before end"
	ReasonAvailabilityOverlap = "overlaps another availability of the teacher"
	ReasonAvailabilityOff     = "availability is not active"
	ReasonOverlap             = "overlap"
	ReasonStudentOverlap      = "student already has a class in this interval"
	ReasonAnticipation        = "<1h anticipation"
	ReasonOutsideWindow       = "interval outside availability window"
	ReasonWholeHours          = "duration must be a whole number of hours"
	ReasonStartBeforeEnd      = "start must be before end"
	ReasonWalletNotReady      = "teacher cannot receive payments yet"
	ReasonPaymentNotCompleted = "payment not completed"
	ReasonAlreadyVerified     = "payment already verified"
	ReasonClassNotEnded       = "class has not ended"
	ReasonWindowExpired       = "confirmation window expired"
	ReasonAlreadyConfirmed    = "already confirmed"
	ReasonBookingNotActive    = "booking is not active"
	ReasonRescheduleExpired   = "reschedule request expired"
	ReasonSlotTaken           = "proposed slot is no longer available"
)
