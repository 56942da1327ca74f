package chainrpc

// DepositABI describes the deposit contract users pay the base asset into.
//
//	event Deposit(address indexed from, uint256 amount);
const DepositABI = `[
	{
		"type": "event",
		"name": "Deposit",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	}
]`

// FaucetABI describes the per-token dispenser contract.
//
//	function withdraw(address to, uint256 amount) payable;
//	event Withdrawal(address indexed to, uint256 amount);
const FaucetABI = `[
	{
		"type": "function",
		"name": "withdraw",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [],
		"stateMutability": "payable"
	},
	{
		"type": "event",
		"name": "Withdrawal",
		"anonymous": false,
		"inputs": [
			{"name": "to", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	}
]`
