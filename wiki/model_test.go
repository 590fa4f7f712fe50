package wiki

import "testing"

func TestContributor_UserColumn(t *testing.T) {
	cases := []struct {
		name string
		c    Contributor
		want int64
	}{
		{"anonymous maps to zero", Contributor{Kind: ContributorAnonymous, IP: "1.2.3.4"}, 0},
		{"registered keeps user id", Contributor{Kind: ContributorRegistered, UserID: 42}, 42},
		{"missing id maps to -2", Contributor{Kind: ContributorMissingID, Username: "Weird"}, -2},
		{"absent maps to -1", Contributor{Kind: ContributorAbsent}, -1},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.UserColumn(); got != tt.want {
				t.Errorf("UserColumn() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestContributor_String(t *testing.T) {
	cases := []struct {
		name string
		c    Contributor
		want string
	}{
		{"anonymous", Contributor{Kind: ContributorAnonymous, IP: "1.2.3.4"}, "Anonymous(1.2.3.4)"},
		{"registered", Contributor{Kind: ContributorRegistered, UserID: 7, Username: "Alice"}, `Registered(7,"Alice")`},
		{"missing id", Contributor{Kind: ContributorMissingID, Username: "Weird"}, `MissingID("Weird")`},
		{"absent", Contributor{Kind: ContributorAbsent}, "Absent"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
