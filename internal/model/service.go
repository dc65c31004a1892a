package model

// TimeSlots is the fixed daily slot catalog in booking order.
var TimeSlots = []string{
	"9:00 AM", "9:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"2:00 PM", "2:30 PM", "3:00 PM", "3:30 PM", "4:00 PM", "4:30 PM",
}

// Services is the bookable service catalog.
var Services = []string{
	"General Consultation",
	"Follow-up",
	"Specialist Consultation",
	"Health Checkup",
	"Vaccination",
	"Minor Surgery",
	"Emergency Consultation",
}

var slotIndex = func() map[string]int {
	idx := make(map[string]int, len(TimeSlots))
	for i, s := range TimeSlots {
		idx[s] = i
	}
	return idx
}()

func IsTimeSlot(s string) bool {
	_, ok := slotIndex[s]
	return ok
}

// SlotOrder returns the catalog position of a slot, or -1 for unknown labels.
func SlotOrder(s string) int {
	if i, ok := slotIndex[s]; ok {
		return i
	}
	return -1
}

func IsService(s string) bool {
	for _, svc := range Services {
		if svc == s {
			return true
		}
	}
	return false
}
