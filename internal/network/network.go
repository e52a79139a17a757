// Package network enumerates the supported networks and resolves their
// fixed service endpoints.
package network

import "fmt"

// Network selects which chain the application talks to. Signed
// transactions are network-specific; switching networks invalidates every
// in-flight operation and tears down the wallet session.
type Network string

const (
	// Mainnet is the production network.
	Mainnet Network = "mainnet"
	// Testnet is the public test network.
	Testnet Network = "testnet"
)

// Parse converts a user-supplied selector into a Network.
func Parse(s string) (Network, error) {
	switch s {
	case "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	default:
		return "", fmt.Errorf("unknown network %q: must be mainnet or testnet", s)
	}
}

// Valid reports whether n is one of the enumerated networks.
func (n Network) Valid() bool {
	return n == Mainnet || n == Testnet
}

// AlgodEndpoint resolves the node RPC endpoint for the network. Total over
// the two enumerated networks; unknown values fall back to testnet so the
// function has no failure path.
func (n Network) AlgodEndpoint() string {
	if n == Mainnet {
		return "https://mainnet-api.algonode.cloud"
	}
	return "https://testnet-api.algonode.cloud"
}

// DirectoryEndpoint resolves the verified-asset catalog endpoint for the
// network.
func (n Network) DirectoryEndpoint() string {
	if n == Mainnet {
		return "https://mainnet.api.perawallet.app/v1/public/assets/"
	}
	return "https://testnet.api.perawallet.app/v1/public/assets/"
}
