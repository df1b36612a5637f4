package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sigweihq/beatmarket/pkg/chains"
)

var chainsFamily string

var chainsCmd = &cobra.Command{
	Use:   "chains [id]",
	Short: "List supported networks, or describe one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChains,
}

func init() {
	chainsCmd.Flags().StringVar(&chainsFamily, "family", "", "only list networks of this family (evm, solana, ton)")
}

func runChains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry := cfg.Registry()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		id := chains.ChainID(args[0])
		desc, err := registry.Describe(id)
		if err != nil {
			fmt.Fprintf(out, "%s (unsupported)\n", registry.Label(id))
			return err
		}
		fmt.Fprintf(out, "%s\n  id: %s\n  family: %s\n  currency: %s (%d decimals)\n  rpc: %v\n  explorer: %s\n",
			desc.Name, desc.ChainID, desc.Family, desc.NativeSymbol, desc.Decimals, desc.RPCURLs, desc.ExplorerURL)
		return nil
	}

	networks := registry.Networks()
	if chainsFamily != "" {
		networks = registry.NetworksByFamily(chains.Family(chainsFamily))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFAMILY\tSYMBOL\tRPC")
	for _, n := range networks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ChainID, n.Name, n.Family, n.NativeSymbol, n.RPCURL())
	}
	return w.Flush()
}
