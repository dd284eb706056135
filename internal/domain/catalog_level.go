package domain

type CatalogLevel string

func (l CatalogLevel) String() string {
	return string(l)
}

const (
	CatalogLevelMake         CatalogLevel = "make"          // oem_makes
	CatalogLevelModel        CatalogLevel = "model"         // oem_models
	CatalogLevelModelYear    CatalogLevel = "model_year"    // oem_model_years
	CatalogLevelAssembly     CatalogLevel = "assembly"      // oem_assemblies
	CatalogLevelPart         CatalogLevel = "part"          // oem_parts
	CatalogLevelAssemblyPart CatalogLevel = "assembly_part" // oem_assembly_parts
)

// CatalogLevels lists the hierarchy in merge (dependency) order.
var CatalogLevels = []CatalogLevel{
	CatalogLevelMake,
	CatalogLevelModel,
	CatalogLevelModelYear,
	CatalogLevelAssembly,
	CatalogLevelPart,
	CatalogLevelAssemblyPart,
}

func (l CatalogLevel) GetLevelName() string {
	switch l {
	case CatalogLevelMake:
		return "Makes"
	case CatalogLevelModel:
		return "Models"
	case CatalogLevelModelYear:
		return "Model years"
	case CatalogLevelAssembly:
		return "Assemblies"
	case CatalogLevelPart:
		return "Parts"
	case CatalogLevelAssemblyPart:
		return "Assembly parts"
	default:
		return "Unknown"
	}
}

func (l CatalogLevel) TableName() string {
	switch l {
	case CatalogLevelMake:
		return "oem_makes"
	case CatalogLevelModel:
		return "oem_models"
	case CatalogLevelModelYear:
		return "oem_model_years"
	case CatalogLevelAssembly:
		return "oem_assemblies"
	case CatalogLevelPart:
		return "oem_parts"
	case CatalogLevelAssemblyPart:
		return "oem_assembly_parts"
	default:
		return ""
	}
}
