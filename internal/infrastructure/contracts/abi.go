package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
{"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const wrappedNativeABIJSON = `[
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
{"type":"event","name":"Deposit","anonymous":false,"inputs":[{"name":"dst","type":"address","indexed":true},{"name":"wad","type":"uint256","indexed":false}]},
{"type":"event","name":"Withdrawal","anonymous":false,"inputs":[{"name":"src","type":"address","indexed":true},{"name":"wad","type":"uint256","indexed":false}]}
]`

const exchangeABIJSON = `[
{"type":"function","name":"createPool","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"addLiquidity","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},{"name":"amountAMin","type":"uint256"},{"name":"amountBMin","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"removeLiquidity","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"liquidity","type":"uint256"},{"name":"amountAMin","type":"uint256"},{"name":"amountBMin","type":"uint256"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAmountOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getPoolInfo","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"reserveA","type":"uint256"},{"name":"reserveB","type":"uint256"},{"name":"totalLiquidity","type":"uint256"}]},
{"type":"function","name":"getUserLiquidity","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getPoolId","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"event","name":"Swap","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"poolId","type":"bytes32","indexed":false},{"name":"tokenIn","type":"address","indexed":false},{"name":"tokenOut","type":"address","indexed":false},{"name":"amountIn","type":"uint256","indexed":false},{"name":"amountOut","type":"uint256","indexed":false}]},
{"type":"event","name":"LiquidityAdded","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"poolId","type":"bytes32","indexed":false},{"name":"amountA","type":"uint256","indexed":false},{"name":"amountB","type":"uint256","indexed":false},{"name":"liquidity","type":"uint256","indexed":false}]},
{"type":"event","name":"LiquidityRemoved","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"poolId","type":"bytes32","indexed":false},{"name":"amountA","type":"uint256","indexed":false},{"name":"amountB","type":"uint256","indexed":false},{"name":"liquidity","type":"uint256","indexed":false}]}
]`

const farmABIJSON = `[
{"type":"function","name":"poolLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getPoolInfo","stateMutability":"view","inputs":[{"name":"pid","type":"uint256"}],"outputs":[{"name":"lpToken","type":"address"},{"name":"rewardToken","type":"address"},{"name":"allocPoint","type":"uint256"},{"name":"totalStaked","type":"uint256"},{"name":"rewardPerBlock","type":"uint256"},{"name":"name","type":"string"},{"name":"active","type":"bool"}]},
{"type":"function","name":"getUserInfo","stateMutability":"view","inputs":[{"name":"pid","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"amount","type":"uint256"},{"name":"rewardDebt","type":"uint256"},{"name":"pendingRewards","type":"uint256"}]},
{"type":"function","name":"pendingReward","stateMutability":"view","inputs":[{"name":"pid","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"pid","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"pid","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"harvest","stateMutability":"nonpayable","inputs":[{"name":"pid","type":"uint256"}],"outputs":[]},
{"type":"function","name":"calculateAPY","stateMutability":"view","inputs":[{"name":"pid","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"Deposit","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"pid","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"Withdraw","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"pid","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"Harvest","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"pid","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const lendingABIJSON = `[
{"type":"function","name":"supply","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"borrow","stateMutability":"nonpayable","inputs":[{"name":"collateralToken","type":"address"},{"name":"borrowToken","type":"address"},{"name":"collateralAmount","type":"uint256"},{"name":"borrowAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"repay","stateMutability":"nonpayable","inputs":[{"name":"borrowId","type":"uint256"},{"name":"repayAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getMaxBorrowAmount","stateMutability":"view","inputs":[{"name":"collateralToken","type":"address"},{"name":"borrowToken","type":"address"},{"name":"collateralAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserBorrow","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"borrowId","type":"uint256"}],"outputs":[{"name":"collateralAmount","type":"uint256"},{"name":"borrowAmount","type":"uint256"},{"name":"collateralToken","type":"address"},{"name":"borrowToken","type":"address"},{"name":"totalOwed","type":"uint256"},{"name":"active","type":"bool"}]},
{"type":"function","name":"getUserSupplied","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserBorrowCount","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getPoolInfo","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"totalSuppliedAmount","type":"uint256"},{"name":"totalBorrowedAmount","type":"uint256"},{"name":"availableLiquidity","type":"uint256"},{"name":"utilizationRate","type":"uint256"}]},
{"type":"function","name":"liquidationThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"TokensBorrowed","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"collateralToken","type":"address","indexed":false},{"name":"borrowToken","type":"address","indexed":false},{"name":"collateralAmount","type":"uint256","indexed":false},{"name":"borrowAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"LoanRepaid","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"borrowId","type":"uint256","indexed":false},{"name":"repayAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"TokenSupplied","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"token","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]}
]`

const stakingABIJSON = `[
{"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"unstake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"claimRewards","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"getStakerInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"stakedAmount","type":"uint256"},{"name":"pendingRewards","type":"uint256"},{"name":"lastUpdate","type":"uint256"}]},
{"type":"function","name":"getTotalStaked","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAPY","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"Staked","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"Unstaked","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"RewardsClaimed","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	parsedOnce       sync.Once
	erc20ABI         abi.ABI
	wrappedNativeABI abi.ABI
	exchangeABI      abi.ABI
	farmABI          abi.ABI
	lendingABI       abi.ABI
	stakingABI       abi.ABI
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return parsed
}

func initABIs() {
	parsedOnce.Do(func() {
		erc20ABI = mustParse("ERC20", erc20ABIJSON)
		wrappedNativeABI = mustParse("wrapped native", wrappedNativeABIJSON)
		exchangeABI = mustParse("exchange", exchangeABIJSON)
		farmABI = mustParse("farm", farmABIJSON)
		lendingABI = mustParse("lending", lendingABIJSON)
		stakingABI = mustParse("staking", stakingABIJSON)
	})
}

// ERC20ABI returns the fungible token ABI, including mint.
func ERC20ABI() abi.ABI { initABIs(); return erc20ABI }

// WrappedNativeABI returns the deposit/withdraw surface of WKAIA.
func WrappedNativeABI() abi.ABI { initABIs(); return wrappedNativeABI }

func ExchangeABI() abi.ABI { initABIs(); return exchangeABI }
func FarmABI() abi.ABI     { initABIs(); return farmABI }
func LendingABI() abi.ABI  { initABIs(); return lendingABI }
func StakingABI() abi.ABI  { initABIs(); return stakingABI }
