package domain

// BasisPoints is the denominator of fee rates: 10000 bps = 100%.
const BasisPoints int64 = 10000

// CPMViews is the number of views a CPM price covers.
const CPMViews int64 = 1000

// PlatformFee returns round(amount * bps / 10000), rounding halves up.
// Tiny amounts can round to a zero fee.
func PlatformFee(amountCents, feeBps int64) int64 {
	if amountCents <= 0 || feeBps <= 0 {
		return 0
	}
	return (amountCents*feeBps + BasisPoints/2) / BasisPoints
}

// PayoutPerView returns floor(cpm / 1000).
func PayoutPerView(cpmCents int64) int64 {
	if cpmCents <= 0 {
		return 0
	}
	return cpmCents / CPMViews
}
