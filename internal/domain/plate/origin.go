package plate

import (
	"strings"
	"unicode"
)

const originUnknown = "Unknown"

// Indonesian registration prefixes.
var originByPrefix = map[string]string{
	"A":  "Banten",
	"B":  "Jakarta (Greater Jakarta)",
	"D":  "Greater Bandung",
	"E":  "Cirebon",
	"F":  "Bogor / Sukabumi / Cianjur",
	"G":  "Pekalongan",
	"H":  "Semarang",
	"K":  "Rembang / Pati / Kudus (ex-Karesidenan Pati)",
	"L":  "Surabaya",
	"M":  "Madura",
	"N":  "Malang / Pasuruan",
	"P":  "Besuki / Jember / Bondowoso / Situbondo / Banyuwangi",
	"R":  "Banyumas",
	"AA": "Kedu",
	"AB": "Yogyakarta",
	"AD": "Surakarta / Klaten / Sragen / Boyolali",
	"AE": "Madiun / Magetan / Ponorogo / Pacitan / Ngawi",
	"AG": "Kediri / Blitar / Trenggalek / Nganjuk",
	"BA": "West Sumatra",
	"BB": "Tapanuli",
	"BD": "Bengkulu",
	"BE": "Lampung",
	"BG": "Palembang (South Sumatra)",
	"BH": "Jambi",
	"BK": "Medan (North Sumatra / East Sumatra)",
	"BL": "Aceh",
	"BM": "Riau (mainland)",
	"BN": "Riau Islands",
	"BP": "Riau Islands (Batam/Tg. Pinang)",
	"BR": "West Kalimantan",
	"DA": "South Kalimantan",
	"DB": "Manado",
	"DD": "Sulawesi (SE/North Gorontalo legacy)",
	"DE": "Ambon (Maluku)",
	"DG": "Ternate (North Maluku)",
	"DH": "Timor (NTT)",
	"DK": "Bali",
}

// PlatePrefix returns the registration prefix of a plate: the two-letter code
// when it is a known one, otherwise the first character. Returns "" when the
// text holds no letters, digits or spaces.
func PlatePrefix(text string) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == ' ' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, text))
	if cleaned == "" {
		return ""
	}

	token := strings.ToUpper(strings.Fields(cleaned)[0])
	if len(token) >= 2 {
		if _, ok := originByPrefix[token[:2]]; ok {
			return token[:2]
		}
	}
	return token[:1]
}

// OriginFromPlate maps a plate to the region that issued it.
// "" means the plate text was empty after cleaning.
func OriginFromPlate(text string) string {
	prefix := PlatePrefix(text)
	if prefix == "" {
		return ""
	}
	if origin, ok := originByPrefix[prefix]; ok {
		return origin
	}
	return originUnknown
}
