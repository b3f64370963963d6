package calendar

import "testing"

func TestMarkerFilter(t *testing.T) {
	if got := MarkerFilter(); got != "managedBy=calpush" {
		t.Errorf("Expected 'managedBy=calpush', got '%s'", got)
	}
}
