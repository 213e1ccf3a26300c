package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ResourceType identifies the kind of relief resource a listing describes.
type ResourceType string

const (
	ResourceOxygen          ResourceType = "oxygen"
	ResourcePlasma          ResourceType = "plasma"
	ResourceHospitalBed     ResourceType = "hospital_bed"
	ResourceHospitalBedICU  ResourceType = "hospital_bed_icu"
	ResourceAmbulance       ResourceType = "ambulance"
	ResourceECMO            ResourceType = "ecmo"
	ResourceFood            ResourceType = "food"
	ResourceTesting         ResourceType = "testing"
	ResourceMedicine        ResourceType = "medicine"
	ResourceVentilator      ResourceType = "ventilator"
	ResourceHelpline        ResourceType = "helpline"
	ResourceBlood           ResourceType = "blood"
	ResourceMedAmphotericin ResourceType = "med_amphotericin"
	ResourceMedCresemba     ResourceType = "med_cresemba"
	ResourceMedTocilizumab  ResourceType = "med_tocilizumab"
	ResourceMedOseltamivir  ResourceType = "med_oseltamivir"
	ResourceMedAmpholyn     ResourceType = "med_ampholyn"
	ResourceMedPosaconazole ResourceType = "med_posaconazole"
	ResourceMedFabiflu      ResourceType = "med_fabiflu"
	ResourceOxyCylinder     ResourceType = "oxy_cylinder"
	ResourceOxyConcentrator ResourceType = "oxy_concentrator"
	ResourceOxyRefill       ResourceType = "oxy_refill"
	ResourceOxyRegulator    ResourceType = "oxy_regulator"
)

// AllResourceTypes returns every supported resource type in declaration order.
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceOxygen, ResourcePlasma, ResourceHospitalBed, ResourceHospitalBedICU,
		ResourceAmbulance, ResourceECMO, ResourceFood, ResourceTesting,
		ResourceMedicine, ResourceVentilator, ResourceHelpline, ResourceBlood,
		ResourceMedAmphotericin, ResourceMedCresemba, ResourceMedTocilizumab,
		ResourceMedOseltamivir, ResourceMedAmpholyn, ResourceMedPosaconazole,
		ResourceMedFabiflu, ResourceOxyCylinder, ResourceOxyConcentrator,
		ResourceOxyRefill, ResourceOxyRegulator,
	}
}

var resourceTypeSet = func() map[ResourceType]bool {
	m := make(map[ResourceType]bool)
	for _, rt := range AllResourceTypes() {
		m[rt] = true
	}
	return m
}()

// ParseResourceType converts a wire string into a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !resourceTypeSet[rt] {
		return "", eris.Errorf("model: unknown resource type %q", s)
	}
	return rt, nil
}

// Valid reports whether rt is a known resource type.
func (rt ResourceType) Valid() bool {
	return resourceTypeSet[rt]
}

func (rt ResourceType) String() string {
	return string(rt)
}

// BloodGroup is a blood group filter for plasma and blood searches.
type BloodGroup string

const (
	BloodAPos  BloodGroup = "a+"
	BloodANeg  BloodGroup = "a-"
	BloodBPos  BloodGroup = "b+"
	BloodBNeg  BloodGroup = "b-"
	BloodOPos  BloodGroup = "o+"
	BloodONeg  BloodGroup = "o-"
	BloodABPos BloodGroup = "ab+"
	BloodABNeg BloodGroup = "ab-"
	BloodAll   BloodGroup = "all"
)

var bloodGroupSet = map[BloodGroup]bool{
	BloodAPos: true, BloodANeg: true, BloodBPos: true, BloodBNeg: true,
	BloodOPos: true, BloodONeg: true, BloodABPos: true, BloodABNeg: true,
	BloodAll: true,
}

// ParseBloodGroup converts a wire string such as "ab+" into a BloodGroup.
func ParseBloodGroup(s string) (BloodGroup, error) {
	bg := BloodGroup(strings.ToLower(strings.TrimSpace(s)))
	if !bloodGroupSet[bg] {
		return "", eris.Errorf("model: unknown blood group %q", s)
	}
	return bg, nil
}

func (bg BloodGroup) String() string {
	return string(bg)
}
