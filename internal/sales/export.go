package sales

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteEventStatsCSV serialises per event sales figures.
func WriteEventStatsCSV(w io.Writer, stats []EventStat) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{
		"Event ID", "Event", "Category", "Event Date", "Status",
		"Bookings", "Confirmed", "Cancelled", "Revenue", "Tickets Sold", "Tickets Available",
	}); err != nil {
		return err
	}
	for _, st := range stats {
		date := ""
		if st.EventDate != nil {
			date = st.EventDate.Format("2006-01-02")
		}
		if err := writer.Write([]string{
			strconv.FormatInt(st.EventID, 10),
			st.EventTitle,
			st.Category,
			date,
			st.Status,
			strconv.Itoa(st.TotalBookings),
			strconv.Itoa(st.ConfirmedBookings),
			strconv.Itoa(st.CancelledBookings),
			strconv.FormatFloat(st.Revenue, 'f', 2, 64),
			strconv.Itoa(st.TicketsSold),
			strconv.Itoa(st.TicketsAvailable),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
