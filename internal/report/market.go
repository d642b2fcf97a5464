package report

import "time"

// Market is the exchange time zone (IST).
var Market = loadMarket()

func loadMarket() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}
