package tiers

import "locksmith-coverage/internal/models"

type limits = map[models.LimitationCategory]bool

// catalogTiers are the hardware profiles we know how to narrow.
// CoveragePercent is a coarse market index, not a measured hit rate.
var catalogTiers = []models.ToolTier{
	// Autel
	{
		ID:              "autel_im608_pro2",
		Name:            "Autel MaxiIM IM608 Pro II",
		Family:          models.FamilyAutel,
		CoveragePercent: 100,
		SupportsCANFD:   true,
		SupportsDoIP:    true,
		SupportsUWB:     true,
	},
	{
		ID:                "autel_im608",
		Name:              "Autel MaxiIM IM608",
		Family:            models.FamilyAutel,
		CoveragePercent:   90,
		ExcludedPlatforms: []string{"CAN FD"},
		SupportsDoIP:      true,
	},
	{
		ID:                  "autel_im508s",
		Name:                "Autel MaxiIM IM508S",
		Family:              models.FamilyAutel,
		CoveragePercent:     75,
		ExcludedPlatforms:   []string{"CAN FD", "DoIP"},
		ExcludedLimitations: limits{models.LimitBenchRequired: true},
		RequiresCables:      true,
	},
	{
		ID:                  "autel_km100",
		Name:                "Autel MaxiIM KM100",
		Family:              models.FamilyAutel,
		CoveragePercent:     60,
		ExcludedPlatforms:   []string{"CAN FD", "DoIP", "SGW"},
		ExcludedLimitations: limits{models.LimitBenchRequired: true, models.LimitServerRequired: true, models.LimitAKLBlocked: true},
		RequiresCables:      true,
	},

	// Lonsdor
	{
		ID:              "lonsdor_k518_pro",
		Name:            "Lonsdor K518 Pro",
		Family:          models.FamilyLonsdor,
		CoveragePercent: 95,
		SupportsCANFD:   true,
		SupportsDoIP:    true,
	},
	{
		ID:                "lonsdor_k518ise",
		Name:              "Lonsdor K518ISE",
		Family:            models.FamilyLonsdor,
		CoveragePercent:   80,
		ExcludedPlatforms: []string{"CAN FD"},
		RequiresCables:    true,
	},
	{
		ID:                  "lonsdor_k518s",
		Name:                "Lonsdor K518S",
		Family:              models.FamilyLonsdor,
		CoveragePercent:     70,
		ExcludedPlatforms:   []string{"CAN FD", "DoIP"},
		ExcludedLimitations: limits{models.LimitBenchRequired: true, models.LimitAKLBlocked: true},
		RequiresCables:      true,
	},

	// Xhorse VVDI
	{
		ID:              "vvdi_key_tool_plus",
		Name:            "Xhorse VVDI Key Tool Plus",
		Family:          models.FamilyVVDI,
		CoveragePercent: 100,
		SupportsCANFD:   true,
		SupportsDoIP:    true,
	},
	{
		ID:                  "vvdi2",
		Name:                "Xhorse VVDI2",
		Family:              models.FamilyVVDI,
		CoveragePercent:     85,
		ExcludedPlatforms:   []string{"CAN FD"},
		ExcludedLimitations: limits{models.LimitServerRequired: true},
		RequiresCables:      true,
	},
	{
		ID:                  "vvdi_key_tool_max",
		Name:                "Xhorse VVDI Key Tool Max",
		Family:              models.FamilyVVDI,
		CoveragePercent:     65,
		ExcludedPlatforms:   []string{"CAN FD", "DoIP"},
		ExcludedLimitations: limits{models.LimitBenchRequired: true, models.LimitServerRequired: true},
		RequiresCables:      true,
	},
	{
		ID:                "vvdi_mini_key_tool",
		Name:              "Xhorse VVDI Mini Key Tool",
		Family:            models.FamilyVVDI,
		CoveragePercent:   50,
		ExcludedPlatforms: []string{"CAN FD", "DoIP", "SGW"},
		ExcludedLimitations: limits{
			models.LimitBenchRequired:  true,
			models.LimitServerRequired: true,
			models.LimitAKLBlocked:     true,
			models.LimitTokenRequired:  true,
		},
		RequiresCables: true,
	},
}

// catalogFamilies maps every recognized tool id to its family. Ids listed
// here without a tier pass their family baseline through unchanged.
var catalogFamilies = map[string]models.ToolFamily{
	"autel_im608_pro2":   models.FamilyAutel,
	"autel_im608":        models.FamilyAutel,
	"autel_im508s":       models.FamilyAutel,
	"autel_km100":        models.FamilyAutel,
	"autel_im608_pro":    models.FamilyAutel,
	"smart_pro":          models.FamilySmartPro,
	"smart_pro_tcode":    models.FamilySmartPro,
	"lonsdor_k518_pro":   models.FamilyLonsdor,
	"lonsdor_k518ise":    models.FamilyLonsdor,
	"lonsdor_k518s":      models.FamilyLonsdor,
	"vvdi_key_tool_plus": models.FamilyVVDI,
	"vvdi2":              models.FamilyVVDI,
	"vvdi_key_tool_max":  models.FamilyVVDI,
	"vvdi_mini_key_tool": models.FamilyVVDI,
}
