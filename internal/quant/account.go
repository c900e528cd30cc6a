package quant

// Account 股票账户模拟状态：现金与逐股持仓。
// SendOrder 本身不做越界校验（与下单成本口径保持一致由调用方负责）；
// 模拟器保证卖出不超过持仓、买入不超过可用现金。
type Account struct {
	hold       map[string]int
	cash       float64
	commission float64 // 佣金系数
	tax        float64 // 印花税系数
}

// NewAccount 创建账户。commission/tax 传 0 表示免费用（测试用），
// 生产调用方通常传 DefaultCommission/DefaultTax。
func NewAccount(initCash, commission, tax float64) *Account {
	return &Account{
		hold:       make(map[string]int),
		cash:       initCash,
		commission: commission,
		tax:        tax,
	}
}

// HoldAvailable 返回某只股票的当前持仓股数，未持有时为 0
func (a *Account) HoldAvailable(code string) int {
	return a.hold[code]
}

// CashAvailable 返回当前可用现金
func (a *Account) CashAvailable() float64 {
	return a.cash
}

// LatestAssets 按给定价格估算总资产：现金加上全部持仓按该价折算的市值
// （扣除卖出侧费用）。模拟器一次只跑一只股票，单一价格的近似因此成立。
func (a *Account) LatestAssets(price float64) float64 {
	assets := a.cash
	for _, shares := range a.hold {
		assets += float64(shares) * price * (1 - a.commission - a.tax)
	}
	return assets
}

// SendOrder 执行一笔订单。买入按 (1+佣金+税) 扣减现金并增持；
// 卖出按 (1-佣金-税) 入账并减持，持仓归零时删除条目。
func (a *Account) SendOrder(code string, amount int, price float64, orderType OrderType) {
	switch orderType {
	case OrderBuy:
		a.cash -= price * float64(amount) * (1 + a.commission + a.tax)
		a.hold[code] += amount
	case OrderSell:
		a.cash += price * float64(amount) * (1 - a.commission - a.tax)
		if held, ok := a.hold[code]; ok {
			if amount >= held {
				delete(a.hold, code)
			} else {
				a.hold[code] = held - amount
			}
		}
	}
}

// Clone 深拷贝账户，供每次蒙特卡洛试验独立使用
func (a *Account) Clone() *Account {
	hold := make(map[string]int, len(a.hold))
	for code, shares := range a.hold {
		hold[code] = shares
	}
	return &Account{
		hold:       hold,
		cash:       a.cash,
		commission: a.commission,
		tax:        a.tax,
	}
}
