package hydration

import (
	"math"
	"strconv"

	"github.com/hitoshi/hydrate/internal/model"
)

const (
	ozPerMl = 0.033814
	mlPerOz = 29.5735
)

// MlToOz はmlをオンスに変換する（小数第1位まで）。
func MlToOz(ml int) float64 {
	return math.Round(float64(ml)*ozPerMl*10) / 10
}

// OzToMl はオンスをmlに変換する。
func OzToMl(oz float64) int {
	return int(math.Round(oz * mlPerOz))
}

// FormatVolume は表示単位に合わせた量の文字列を返す。
func FormatVolume(ml int, unit model.VolumeUnit) string {
	if unit == model.UnitOz {
		return strconv.FormatFloat(MlToOz(ml), 'f', -1, 64) + "oz"
	}
	return strconv.Itoa(ml) + "ml"
}
