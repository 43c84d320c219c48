package banner

import (
	"fmt"

	"pressbot/pkg/config"
)

const banner = `
██████╗ ██████╗ ███████╗███████╗███████╗██████╗  ██████╗ ████████╗
██╔══██╗██╔══██╗██╔════╝██╔════╝██╔════╝██╔══██╗██╔═══██╗╚══██╔══╝
██████╔╝██████╔╝█████╗  ███████╗███████╗██████╔╝██║   ██║   ██║
██╔═══╝ ██╔══██╗██╔══╝  ╚════██║╚════██║██╔══██╗██║   ██║   ██║
██║     ██║  ██║███████╗███████║███████║██████╔╝╚██████╔╝   ██║
╚═╝     ╚═╝  ╚═╝╚══════╝╚══════╝╚══════╝╚═════╝  ╚═════╝    ╚═╝
`

// Print prints the startup banner with the effective runtime info.
func Print(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", eff.Source)

	fmt.Println("\n== Setup ======================================================")
	if cfg.Platform.Offline {
		fmt.Println("- Platform: OFFLINE (in-memory, local development only)")
	} else {
		fmt.Printf("- Platform: %s\n", cfg.Platform.APIBase)
		if cfg.Platform.Token != "" {
			fmt.Println("- Token: configured")
		} else {
			fmt.Println("- Token: MISSING (set platform.token or PRESSBOT_TOKEN)")
		}
	}
	fmt.Printf("- Assets: %d configured\n", len(cfg.Assets))
	if len(cfg.Security.AdminKeys) > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", len(cfg.Security.AdminKeys))
	} else {
		fmt.Println("- Admin API keys: MISSING (admin API is open)")
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if cfg.Reconcile.SweepEnabled {
		fmt.Printf("- Reconcile sweep: enabled (cron=%s)\n", cfg.Reconcile.Cron)
	} else {
		fmt.Println("- Reconcile sweep: startup pass only")
	}

	fmt.Println("\n== Logs =======================================================")
}
