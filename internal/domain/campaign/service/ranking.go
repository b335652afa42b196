package service

import (
	"sort"

	"crowdvote/internal/domain/campaign/model"
)

// 折扣档位，第 5 名及以后统一为基础档
var discountTiers = []int{40, 35, 30, 27}

const BaseDiscount = 20

// DiscountForPosition 按名次返回折扣百分比。position 从 1 开始
func DiscountForPosition(position int) int {
	if position >= 1 && position <= len(discountTiers) {
		return discountTiers[position-1]
	}
	return BaseDiscount
}

// RankSupports 按 coins_spent 降序排名，金币相同时先助力者在前。
// 原地排序并写入 Position 和 DiscountPercentage，返回金币总数
func RankSupports(supports []model.Support) int64 {
	sort.SliceStable(supports, func(i, j int) bool {
		if supports[i].CoinsSpent != supports[j].CoinsSpent {
			return supports[i].CoinsSpent > supports[j].CoinsSpent
		}
		return supports[i].CreatedAt.Before(supports[j].CreatedAt)
	})

	var total int64
	for i := range supports {
		supports[i].Position = i + 1
		supports[i].DiscountPercentage = DiscountForPosition(i + 1)
		total += supports[i].CoinsSpent
	}
	return total
}
