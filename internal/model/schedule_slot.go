package model

// Slot кандидат для записи на дату
type Slot struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Taken       bool   `json:"taken"`
	StartMinute int    `json:"start_minute"`
}
