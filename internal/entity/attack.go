package entity

import (
	"fmt"
	"strings"
)

// Attack names one attack module. The set is closed.
type Attack string

const (
	AttackPixieDust  Attack = "pixiedust"
	AttackBruteforce Attack = "bruteforce"
	AttackHandshake  Attack = "handshake"
	AttackPMKID      Attack = "pmkid"
	AttackWifite     Attack = "wifite"
	AttackKismet     Attack = "kismet"
	AttackJustWorks  Attack = "justworks"
	AttackDoS        Attack = "dos"
	AttackBlueDucky  Attack = "blueducky"
)

// Vocabulary returns the attack names valid in a domain, in dispatch order
func Vocabulary(d Domain) []Attack {
	switch d {
	case DomainWifi:
		return []Attack{AttackPixieDust, AttackBruteforce, AttackHandshake, AttackPMKID, AttackWifite, AttackKismet}
	case DomainBluetooth:
		return []Attack{AttackDoS, AttackJustWorks, AttackBlueDucky, AttackKismet}
	}
	return nil
}

// InDomain reports whether the attack name belongs to the domain vocabulary
func (a Attack) InDomain(d Domain) bool {
	for _, v := range Vocabulary(d) {
		if v == a {
			return true
		}
	}
	return false
}

// ParseAttack maps a user supplied name to an Attack
func ParseAttack(name string) (Attack, error) {
	a := Attack(strings.ToLower(strings.TrimSpace(name)))
	for _, d := range Domains {
		if a.InDomain(d) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown attack %q", name)
}
