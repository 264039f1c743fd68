package mikrotik

import "context"

// MockDevice simulates the appliance without any network traffic
type MockDevice struct{}

var _ Device = (*MockDevice)(nil)

var mockActiveRows = []map[string]string{
	{
		".id":               "m1",
		"user":              "guest-001",
		"address":           "192.168.88.10",
		"mac-address":       "4C:5E:0C:AA:BB:01",
		"uptime":            "00:12:33",
		"bytes-in":          "123456",
		"bytes-out":         "456789",
		"login-by":          "http-chap",
		"session-time-left": "",
		"comment":           "mock-user",
	},
	{
		".id":               "m2",
		"user":              "guest-002",
		"address":           "192.168.88.11",
		"mac-address":       "4C:5E:0C:AA:BB:02",
		"uptime":            "01:04:12",
		"bytes-in":          "987654",
		"bytes-out":         "321000",
		"login-by":          "http-chap",
		"session-time-left": "",
		"comment":           "mock-user",
	},
}

// MockActiveRows returns a copy of the fixed active-connection table
func MockActiveRows() []map[string]string {
	rows := make([]map[string]string, len(mockActiveRows))
	for i, src := range mockActiveRows {
		row := make(map[string]string, len(src))
		for k, v := range src {
			row[k] = v
		}
		rows[i] = row
	}
	return rows
}

func (d *MockDevice) Mode() Mode { return ModeMock }

func (d *MockDevice) AddHotspotUser(ctx context.Context, user HotspotUser) Outcome {
	logInfo("Appliance disabled (mock), simulated hotspot user add", "username", user.Name, "limit_uptime", FormatUptime(user.LimitUptime))
	return Outcome{Success: true, Disabled: true}
}

func (d *MockDevice) ActiveConnections(ctx context.Context) ([]map[string]string, error) {
	return MockActiveRows(), nil
}

func (d *MockDevice) RemoveActive(ctx context.Context, id string) Outcome {
	logInfo("Appliance disabled (mock), simulated session kick", "id", id)
	return Outcome{Success: true, Disabled: true}
}

func (d *MockDevice) Status(ctx context.Context) RouterStatus {
	return RouterStatus{Online: false, Mode: ModeMock}
}
