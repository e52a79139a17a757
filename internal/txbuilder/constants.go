package txbuilder

import "time"

// Fixed protocol constants.
const (
	// DonationReceiver is the fixed receiver of the donation payment.
	DonationReceiver = "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A"

	// DonationAmount is one native unit in minor-unit representation.
	DonationAmount = 1_000_000

	// ConfirmationRounds bounds how many rounds the pipeline waits for a
	// submitted transaction to confirm.
	ConfirmationRounds = 4

	// StatusDisplayWindow is how long a terminal operation status stays
	// visible before the tracker clears it.
	StatusDisplayWindow = 3000 * time.Millisecond
)
