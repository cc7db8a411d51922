package classify

import "testing"

func TestClassifyKnownCommands(t *testing.T) {
	cases := []struct {
		command string
		intent  string
		mitre   string
		weight  float64
	}{
		{"/usr/bin/apt update", "Maintenance", "T1072", 0.1},
		{"/usr/sbin/visudo", "Identity Management", "T1078", 0.4},
		{"/usr/bin/curl http://example.com", "Lateral Movement / Data Transfer", "T1021", 0.2},
		{"/bin/cat /etc/shadow", "Credential Access", "T1003", 0.6},
		{"/usr/sbin/iptables -L", "Network Configuration", "T1562", 0.3},
		{"/sbin/shutdown -h now", "Impact / Destructive", "T1485", 0.8},
	}
	for _, tc := range cases {
		got := Classify(tc.command)
		if got.Intent != tc.intent || got.Mitre != tc.mitre || got.RiskWeight != tc.weight {
			t.Fatalf("Classify(%q) = %+v, want intent=%s mitre=%s weight=%v", tc.command, got, tc.intent, tc.mitre, tc.weight)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Matches both the identity pattern (usermod) and the remote-transfer
	// pattern (ssh); the earlier identity rule must win.
	got := Classify("usermod -aG sudo bob && scp /etc/ssh/sshd_config host:")
	if got.Intent != "Identity Management" {
		t.Fatalf("expected Identity Management, got %s", got.Intent)
	}

	got = Classify("usermod -aG sudo bob")
	if got.Intent != "Identity Management" {
		t.Fatalf("expected Identity Management, got %s", got.Intent)
	}
}

func TestClassifyDefault(t *testing.T) {
	got := Classify("/bin/ls -la /var/log")
	if got != DefaultMeta {
		t.Fatalf("expected default metadata, got %+v", got)
	}
	if got.Intent != "General Administration" || got.RiskWeight != 0.0 {
		t.Fatalf("unexpected default: %+v", got)
	}
}
