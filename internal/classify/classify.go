// Package classify maps privileged command strings to intent, MITRE and
// compliance metadata.
package classify

import "regexp"

// Meta is the classification result for one command.
type Meta struct {
	Intent     string
	Mitre      string
	Compliance string
	RiskWeight float64
}

// DefaultMeta is returned when no pattern matches.
var DefaultMeta = Meta{
	Intent:     "General Administration",
	Mitre:      "N/A",
	Compliance: "N/A",
	RiskWeight: 0.0,
}

type rule struct {
	pattern *regexp.Regexp
	meta    Meta
}

// Rules are evaluated in order; the first match wins even when later
// patterns would also match. Order is part of the classification contract.
var rules = []rule{
	{
		pattern: regexp.MustCompile(`apt|dpkg|snap|flatpak|pip`),
		meta:    Meta{Intent: "Maintenance", Mitre: "T1072", Compliance: "SOC2_CC7.1", RiskWeight: 0.1},
	},
	{
		pattern: regexp.MustCompile(`useradd|usermod|userdel|passwd|visudo|groupadd|groupmod|sudoers`),
		meta:    Meta{Intent: "Identity Management", Mitre: "T1078", Compliance: "SOC2_CC6.1", RiskWeight: 0.4},
	},
	{
		pattern: regexp.MustCompile(`ssh|scp|sftp|rsync|curl|wget`),
		meta:    Meta{Intent: "Lateral Movement / Data Transfer", Mitre: "T1021", Compliance: "SOC2_CC6.6", RiskWeight: 0.2},
	},
	{
		pattern: regexp.MustCompile(`shadow|gshadow|private-key|ssh/.*_id`),
		meta:    Meta{Intent: "Credential Access", Mitre: "T1003", Compliance: "SOC2_CC6.1", RiskWeight: 0.6},
	},
	{
		pattern: regexp.MustCompile(`ufw|iptables|firewall|nft|ip `),
		meta:    Meta{Intent: "Network Configuration", Mitre: "T1562", Compliance: "SOC2_CC6.6", RiskWeight: 0.3},
	},
	{
		pattern: regexp.MustCompile(`rm -rf /|dd |mkfs|shutdown|reboot`),
		meta:    Meta{Intent: "Impact / Destructive", Mitre: "T1485", Compliance: "SOC2_CC7.1", RiskWeight: 0.8},
	},
}

// Classify returns intent metadata for a privileged command.
func Classify(command string) Meta {
	for _, r := range rules {
		if r.pattern.MatchString(command) {
			return r.meta
		}
	}
	return DefaultMeta
}
