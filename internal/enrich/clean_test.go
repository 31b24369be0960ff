package enrich

import "testing"

func TestCleanResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare json untouched",
			raw:  `{"risk_score": 10}`,
			want: `{"risk_score": 10}`,
		},
		{
			name: "json fence stripped",
			raw:  "```json\n{\"risk_score\": 10}\n```",
			want: `{"risk_score": 10}`,
		},
		{
			name: "plain fence stripped",
			raw:  "```\n{\"risk_score\": 10}\n```",
			want: `{"risk_score": 10}`,
		},
		{
			name: "prose before object dropped",
			raw:  `Here is the analysis you asked for: {"risk_score": 10}`,
			want: `{"risk_score": 10}`,
		},
		{
			name: "trailing comma in object removed",
			raw:  "{\"tags\": [\"ssh\"],\n}",
			want: "{\"tags\": [\"ssh\"]\n}",
		},
		{
			name: "trailing comma in array removed",
			raw:  `{"tags": ["ssh", ]}`,
			want: `{"tags": ["ssh" ]}`,
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  \n {\"a\": 1} \n",
			want: `{"a": 1}`,
		},
		{
			name: "no object at all",
			raw:  "I cannot analyze this alert.",
			want: "I cannot analyze this alert.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CleanResponse(tt.raw); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
